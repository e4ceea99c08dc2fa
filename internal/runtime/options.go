package runtime

import (
	"log/slog"

	"github.com/aretw0/questgraph/internal/logging"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/google/uuid"
)

// DefaultMaxCascade bounds the number of state exits a single call may cause.
const DefaultMaxCascade = 10000

// Option configures instances and the executor.
type Option func(*config)

type config struct {
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	maxCascade int
	newID      func() string
}

func newConfig(opts []Option) config {
	c := config{
		logger:     logging.NewNop(),
		maxCascade: DefaultMaxCascade,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxCascade overrides DefaultMaxCascade. Values below 1 are ignored.
func WithMaxCascade(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxCascade = n
		}
	}
}

// WithIDGenerator replaces the UUID generator used for new instance ids.
func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.newID = fn
		}
	}
}
