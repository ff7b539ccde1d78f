package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	orderNumberPrefix = "ORD"
	suffixAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	suffixLength      = 6
)

// NumberGenerator produces human-readable order numbers.
type NumberGenerator func(now time.Time) (string, error)

// NewOrderNumber returns e.g. ORD-20260501120000-7KQ2ZP. Uniqueness is enforced
// by the orders_order_number_key index; callers retry on collision.
func NewOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("order number entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.UTC().Format("20060102150405"), buf), nil
}
