package redis

import "strings"

const defaultPrefix = "pd"

// Keyspace builds colon-joined keys under one prefix, e.g. pd:coupon:SAVE10.
// The zero value uses the default prefix.
type Keyspace struct {
	prefix string
}

func NewKeyspace(prefix string) Keyspace {
	return Keyspace{prefix: strings.TrimSpace(prefix)}
}

func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.join("idempotency", scope, id)
}

func (k Keyspace) RateLimitKey(scope string) string {
	return k.join("rate_limit", scope)
}

// CouponKey upper-cases code so lookups match however the shopper typed it.
func (k Keyspace) CouponKey(code string) string {
	return k.join("coupon", strings.ToUpper(code))
}

// LockKey scopes scheduler locks by environment, e.g. pd:prod:auto_confirm:lock.
func (k Keyspace) LockKey(env, name string) string {
	return k.join(env, name)
}

func (k Keyspace) join(parts ...string) string {
	prefix := k.prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	var b strings.Builder
	b.WriteString(prefix)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
