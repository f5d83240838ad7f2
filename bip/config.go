package bip

import (
	"fmt"
	"net"
	"time"

	"github.com/arloliu/go-bacnet/logger"
	"github.com/pion/transport/v3"
	"github.com/pion/transport/v3/stdnet"
)

const (
	DefaultLocalAddress     = "0.0.0.0:47808"
	DefaultBroadcastAddress = "255.255.255.255:47808"
	DefaultCloseTimeout     = 3 * time.Second
)

// Config holds the configuration of a BACnet/IP datalink.
type Config struct {
	localAddress     string
	broadcastAddress *net.UDPAddr
	closeTimeout     time.Duration
	nw               transport.Net

	logger logger.Logger
}

// NewConfig creates a datalink configuration from opts. Without WithNet the
// datalink uses the host network stack.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		localAddress: DefaultLocalAddress,
		closeTimeout: DefaultCloseTimeout,
		logger:       logger.GetLogger(),
	}
	if err := WithBroadcastAddress(DefaultBroadcastAddress).apply(cfg); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.nw == nil {
		nw, err := stdnet.NewNet()
		if err != nil {
			return nil, fmt.Errorf("bip: create network: %w", err)
		}
		cfg.nw = nw
	}

	return cfg, nil
}

// LocalAddress returns the UDP address the datalink binds to.
func (cfg *Config) LocalAddress() string { return cfg.localAddress }

// BroadcastAddress returns the UDP address local broadcasts are sent to.
func (cfg *Config) BroadcastAddress() *net.UDPAddr { return cfg.broadcastAddress }

// CloseTimeout returns how long Close waits for the receive loop to exit.
func (cfg *Config) CloseTimeout() time.Duration { return cfg.closeTimeout }

// Net returns the network used to open sockets.
func (cfg *Config) Net() transport.Net { return cfg.nw }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithLocalAddress sets the "ip:port" the datalink binds to.
func WithLocalAddress(addr string) Option {
	return optFunc(func(cfg *Config) error {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("bip: invalid local address %q: %w", addr, err)
		}
		cfg.localAddress = addr

		return nil
	})
}

// WithBroadcastAddress sets the "ip:port" local broadcasts are sent to,
// usually the directed broadcast address of the subnet.
func WithBroadcastAddress(addr string) Option {
	return optFunc(func(cfg *Config) error {
		udpAddr, err := resolve(addr)
		if err != nil {
			return err
		}
		if udpAddr.IP.To4() == nil {
			return fmt.Errorf("%w: %s", ErrNotIPv4, addr)
		}
		cfg.broadcastAddress = udpAddr

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for the receive loop to exit.
func WithCloseTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return fmt.Errorf("bip: invalid close timeout %v", d)
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithNet sets the network used to open sockets, e.g. a virtual network in tests.
func WithNet(nw transport.Net) Option {
	return optFunc(func(cfg *Config) error {
		if nw != nil {
			cfg.nw = nw
		}

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
