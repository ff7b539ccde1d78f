// Package stripe builds the Stripe API client used to look up payment intents
// when a payment webhook needs confirming against the gateway.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/logger"
)

// Mode is the Stripe account mode a key belongs to.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"

	defaultTimeout = 10 * time.Second
)

var (
	ErrNoKey  = errors.New("stripe api key is required")
	ErrBadKey = errors.New("stripe api key must be a secret (sk_) or restricted (rk_) key")
)

type Client struct {
	api  *stripe.Client
	mode Mode
}

// NewClient refuses a key whose mode disagrees with cfg.Env, so a live key
// never ends up behind a test deployment or the reverse.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrNoKey
	}
	mode, err := KeyMode(key)
	if err != nil {
		return nil, err
	}
	if want := Mode(cfg.Environment()); want != mode {
		return nil, fmt.Errorf("stripe: %s key configured for %q environment", mode, want)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(int64(max(cfg.MaxNetworkRetries, 0))),
	}
	if logg != nil {
		backendCfg.LeveledLogger = leveledLogger{ctx: logg.WithField(ctx, "component", "stripe"), logg: logg}
		logg.Info(logg.WithField(ctx, "stripe_mode", mode), "stripe.ready")
	}

	api := stripe.NewClient(key, stripe.WithBackends(stripe.NewBackendsWithConfig(backendCfg)))
	return &Client{api: api, mode: mode}, nil
}

// KeyMode reads the mode out of a key's prefix.
func KeyMode(key string) (Mode, error) {
	for _, kind := range []string{"sk_", "rk_"} {
		rest, ok := strings.CutPrefix(key, kind)
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(rest, "test_"):
			return ModeTest, nil
		case strings.HasPrefix(rest, "live_"):
			return ModeLive, nil
		}
	}
	return "", ErrBadKey
}

func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

func (c *Client) Mode() Mode {
	if c == nil {
		return ""
	}
	return c.mode
}

// leveledLogger routes stripe-go's own request logging into zerolog.
type leveledLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l leveledLogger) Debugf(format string, v ...any) { l.logg.Debug(l.ctx, fmt.Sprintf(format, v...)) }
func (l leveledLogger) Infof(format string, v ...any)  { l.logg.Debug(l.ctx, fmt.Sprintf(format, v...)) }
func (l leveledLogger) Warnf(format string, v ...any)  { l.logg.Warn(l.ctx, fmt.Sprintf(format, v...)) }
func (l leveledLogger) Errorf(format string, v ...any) {
	l.logg.Error(l.ctx, "stripe.request_failed", fmt.Errorf(format, v...))
}
