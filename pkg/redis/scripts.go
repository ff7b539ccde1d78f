package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Lua keeps the read-compare-write steps below atomic on the server.
const (
	// KEYS[1] is deleted only while it still holds ARGV[1].
	compareAndDelete = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

	// KEYS[1] gets a new PTTL of ARGV[2] only while it still holds ARGV[1].
	compareAndExpire = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

	// Counts a hit, starts the window on the first one, returns {count, pttl}.
	windowIncr = `local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}`
)

// Window is the outcome of one fixed-window hit.
type Window struct {
	Allowed bool
	Count   int64
	ResetIn time.Duration
}

// FixedWindowAllow counts one hit against scope and reports whether it is
// within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error) {
	if c.store == nil {
		return Window{}, errNotReady
	}
	if window <= 0 {
		return Window{}, errors.New("rate limit window must be positive")
	}
	reply, err := c.store.Eval(ctx, windowIncr, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	if len(reply) != 2 {
		return Window{}, fmt.Errorf("rate limit %s: unexpected reply %v", scope, reply)
	}
	reset := time.Duration(reply[1]) * time.Millisecond
	if reset < 0 {
		// key lost its expiry somehow; report a full window rather than none
		reset = window
	}
	return Window{Allowed: reply[0] <= limit, Count: reply[0], ResetIn: reset}, nil
}

// DelIfValue deletes key only when it still holds value.
func (c *Client) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	return c.compareAnd(ctx, compareAndDelete, key, value)
}

// ExpireIfValue resets key's TTL only when it still holds value.
func (c *Client) ExpireIfValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("ttl must be positive")
	}
	return c.compareAnd(ctx, compareAndExpire, key, value, ttl.Milliseconds())
}

func (c *Client) compareAnd(ctx context.Context, script, key string, args ...any) (bool, error) {
	if c.store == nil {
		return false, errNotReady
	}
	n, err := c.store.Eval(ctx, script, []string{key}, args...).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
