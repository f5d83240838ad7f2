package client

import (
	"fmt"
	"time"

	"github.com/arloliu/go-bacnet/bacnet"
	"github.com/arloliu/go-bacnet/logger"
	"github.com/arloliu/go-bacnet/tsm"
)

const (
	DefaultTickInterval = 20 * time.Millisecond
	DefaultCloseTimeout = 3 * time.Second
)

// Config holds the configuration of a Client.
type Config struct {
	tsmCfg       *tsm.ManagerConfig
	tsmOpts      []tsm.ManagerOption
	tickInterval time.Duration
	closeTimeout time.Duration

	logger logger.Logger
}

// NewConfig creates a client configuration from opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		tickInterval: DefaultTickInterval,
		closeTimeout: DefaultCloseTimeout,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	tsmOpts := append([]tsm.ManagerOption{tsm.WithLogger(cfg.logger)}, cfg.tsmOpts...)
	tsmCfg, err := tsm.NewManagerConfig(tsmOpts...)
	if err != nil {
		return nil, err
	}
	cfg.tsmCfg = tsmCfg
	cfg.tsmOpts = nil

	return cfg, nil
}

// TSMConfig returns the configuration of the client's transaction manager.
func (cfg *Config) TSMConfig() *tsm.ManagerConfig { return cfg.tsmCfg }

// TickInterval returns how often the retry timers are advanced.
func (cfg *Config) TickInterval() time.Duration { return cfg.tickInterval }

// CloseTimeout returns how long Close waits for the tick loop to exit.
func (cfg *Config) CloseTimeout() time.Duration { return cfg.closeTimeout }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

func withTSM(opt tsm.ManagerOption) Option {
	return optFunc(func(cfg *Config) error {
		cfg.tsmOpts = append(cfg.tsmOpts, opt)
		return nil
	})
}

// WithCapacity sets the maximum number of concurrent requests, in [1, 255].
func WithCapacity(n int) Option { return withTSM(tsm.WithCapacity(n)) }

// WithRequestTimeout sets the time to wait for a reply before retransmitting.
func WithRequestTimeout(d time.Duration) Option { return withTSM(tsm.WithRequestTimeout(d)) }

// WithMaxRetries sets the number of retransmissions before a request times out.
func WithMaxRetries(n int) Option { return withTSM(tsm.WithMaxRetries(n)) }

// WithMaxAPDULength sets the largest request APDU, which is also advertised
// as the largest reply this client accepts.
func WithMaxAPDULength(n int) Option {
	return withTSM(tsm.WithMaxAPDULength(n))
}

// WithTickInterval sets how often the retry timers are advanced.
func WithTickInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < time.Millisecond {
			return fmt.Errorf("client: tick interval %v below 1ms", d)
		}
		cfg.tickInterval = d

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for the tick loop to exit.
func WithCloseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return fmt.Errorf("client: invalid close timeout %v", d)
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l != nil {
			cfg.logger = l
		}

		return nil
	})
}

// maxAPDU is the largest reply advertised in requests.
func (cfg *Config) maxAPDU() int {
	if n := cfg.tsmCfg.MaxAPDULength(); n < bacnet.MaxAPDULength {
		return n
	}

	return bacnet.MaxAPDULength
}
