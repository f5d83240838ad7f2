package tsm

import (
	"fmt"
	"time"

	"github.com/arloliu/go-bacnet/bacnet"
	"github.com/arloliu/go-bacnet/logger"
)

// Default retry policy, matching the BACnet device object defaults for
// APDU_Timeout and Number_Of_APDU_Retries.
const (
	DefaultCapacity       = 255
	DefaultRequestTimeout = 3 * time.Second
	DefaultMaxRetries     = 3
	DefaultMaxAPDULength  = bacnet.MaxAPDULength
)

// Limits of the configurable values.
const (
	MinCapacity = 1
	MaxCapacity = int(MaxInvokeID) // one slot per usable invoke ID

	MinRequestTimeout = time.Millisecond
	MaxRequestTimeout = 65535 * time.Millisecond

	MaxRetries = 255

	MinAPDULength = 50
	MaxAPDULength = bacnet.MaxAPDULength
)

// ManagerConfig holds the configuration of a transaction Manager.
type ManagerConfig struct {
	capacity       int
	requestTimeout time.Duration
	maxRetries     int
	maxAPDULength  int
	onTimeout      TimeoutHandler

	logger logger.Logger
}

// NewManagerConfig creates a manager configuration with the default retry
// policy, modified by opts applied in order.
func NewManagerConfig(opts ...ManagerOption) (*ManagerConfig, error) {
	cfg := &ManagerConfig{
		capacity:       DefaultCapacity,
		requestTimeout: DefaultRequestTimeout,
		maxRetries:     DefaultMaxRetries,
		maxAPDULength:  DefaultMaxAPDULength,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Capacity returns the number of transaction slots.
func (cfg *ManagerConfig) Capacity() int { return cfg.capacity }

// RequestTimeout returns the initial per-request timeout.
func (cfg *ManagerConfig) RequestTimeout() time.Duration { return cfg.requestTimeout }

// MaxRetries returns the initial number of retransmissions before a transaction fails.
func (cfg *ManagerConfig) MaxRetries() int { return cfg.maxRetries }

// MaxAPDULength returns the size of each slot's payload buffer.
func (cfg *ManagerConfig) MaxAPDULength() int { return cfg.maxAPDULength }

// GetLogger returns the configured logger.
func (cfg *ManagerConfig) GetLogger() logger.Logger { return cfg.logger }

// ManagerOption is a functional option for configuring a ManagerConfig.
type ManagerOption interface {
	apply(*ManagerConfig) error
}

type managerOptFunc func(*ManagerConfig) error

func (f managerOptFunc) apply(cfg *ManagerConfig) error { return f(cfg) }

// WithCapacity sets the number of transaction slots, in [1, 255].
func WithCapacity(n int) ManagerOption {
	return managerOptFunc(func(cfg *ManagerConfig) error {
		if n < MinCapacity || n > MaxCapacity {
			return fmt.Errorf("tsm: capacity %d out of range [%d, %d]", n, MinCapacity, MaxCapacity)
		}
		cfg.capacity = n

		return nil
	})
}

// WithRequestTimeout sets the time to wait for a reply before retransmitting.
func WithRequestTimeout(d time.Duration) ManagerOption {
	return managerOptFunc(func(cfg *ManagerConfig) error {
		if err := validateRequestTimeout(d); err != nil {
			return err
		}
		cfg.requestTimeout = d

		return nil
	})
}

// WithMaxRetries sets the number of retransmissions before a transaction fails.
func WithMaxRetries(n int) ManagerOption {
	return managerOptFunc(func(cfg *ManagerConfig) error {
		if err := validateMaxRetries(n); err != nil {
			return err
		}
		cfg.maxRetries = n

		return nil
	})
}

// WithMaxAPDULength sets the largest APDU that can be registered, in [50, 1476].
func WithMaxAPDULength(n int) ManagerOption {
	return managerOptFunc(func(cfg *ManagerConfig) error {
		if n < MinAPDULength || n > MaxAPDULength {
			return fmt.Errorf("tsm: max APDU length %d out of range [%d, %d]", n, MinAPDULength, MaxAPDULength)
		}
		cfg.maxAPDULength = n

		return nil
	})
}

// WithTimeoutHandler sets the handler called when a transaction exhausts its retries.
func WithTimeoutHandler(h TimeoutHandler) ManagerOption {
	return managerOptFunc(func(cfg *ManagerConfig) error {
		cfg.onTimeout = h
		return nil
	})
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l logger.Logger) ManagerOption {
	return managerOptFunc(func(cfg *ManagerConfig) error {
		if l != nil {
			cfg.logger = l
		}

		return nil
	})
}

func validateRequestTimeout(d time.Duration) error {
	if d < MinRequestTimeout || d > MaxRequestTimeout {
		return fmt.Errorf("tsm: request timeout %v out of range [%v, %v]", d, MinRequestTimeout, MaxRequestTimeout)
	}

	return nil
}

func validateMaxRetries(n int) error {
	if n < 0 || n > MaxRetries {
		return fmt.Errorf("tsm: max retries %d out of range [0, %d]", n, MaxRetries)
	}

	return nil
}
