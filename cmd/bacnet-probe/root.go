package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-bacnet/bip"
	"github.com/arloliu/go-bacnet/client"
	"github.com/arloliu/go-bacnet/logger"
	"github.com/arloliu/go-bacnet/metrics"
	"github.com/arloliu/go-bacnet/tsm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "BACNET"

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "bacnet-probe",
		Short:         "bacnet-probe sends BACnet confirmed requests over BACnet/IP",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # read the present value of analog-input 1
  bacnet-probe read-property --device 192.168.1.20 --object analog-input:1

  # same, with a shorter APDU timeout taken from the environment
  BACNET_APDU_TIMEOUT=500ms bacnet-probe read-property --device 192.168.1.20 --object analog-input:1
`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfigFile(v)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "path to a config file (yaml, toml or json)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("local", bip.DefaultLocalAddress, "local B/IP address to bind")
	flags.String("broadcast", bip.DefaultBroadcastAddress, "B/IP broadcast address")
	flags.Duration("apdu-timeout", tsm.DefaultRequestTimeout, "time to wait for a reply before retransmitting")
	flags.Int("retries", tsm.DefaultMaxRetries, "number of retransmissions before giving up")
	flags.Int("max-concurrent", tsm.DefaultCapacity, "maximum number of outstanding requests")
	flags.String("metrics-listen", "", "serve Prometheus metrics on this address (e.g. :9100)")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	bindFlags(v, flags)

	cmd.AddCommand(newReadPropertyCommand(v))

	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(flag *pflag.Flag) {
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			panic(err)
		}
	})
}

func loadConfigFile(v *viper.Viper) error {
	path := strings.TrimSpace(v.GetString("config"))
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	return nil
}

// session is an open datalink with a client bound to it.
type session struct {
	datalink *bip.Datalink
	client   *client.Client
	metrics  *metrics.Server
	logger   logger.Logger
}

func openSession(ctx context.Context, v *viper.Viper, cmd *cobra.Command) (*session, error) {
	level, ok := logger.ParseLevel(v.GetString("log-level"))
	if !ok {
		return nil, fmt.Errorf("invalid log level %q", v.GetString("log-level"))
	}
	l := logger.NewSlogWriter(cmd.ErrOrStderr(), level, false)
	logger.SetLogger(l)

	bipCfg, err := bip.NewConfig(
		bip.WithLocalAddress(v.GetString("local")),
		bip.WithBroadcastAddress(v.GetString("broadcast")),
		bip.WithLogger(l),
	)
	if err != nil {
		return nil, err
	}
	dl, err := bip.NewDatalink(ctx, bipCfg)
	if err != nil {
		return nil, err
	}

	cliCfg, err := client.NewConfig(
		client.WithRequestTimeout(v.GetDuration("apdu-timeout")),
		client.WithMaxRetries(v.GetInt("retries")),
		client.WithCapacity(v.GetInt("max-concurrent")),
		client.WithLogger(l),
	)
	if err != nil {
		_ = dl.Close()
		return nil, err
	}
	cli, err := client.New(ctx, dl, cliCfg)
	if err != nil {
		_ = dl.Close()
		return nil, err
	}
	dl.SetHandler(cli.HandleAPDU)

	s := &session{datalink: dl, client: cli, logger: l}

	if addr := strings.TrimSpace(v.GetString("metrics-listen")); addr != "" {
		reg := prometheus.NewRegistry()
		err := metrics.RegisterTSM(reg, "bacnet", cli.TSM())
		if err == nil {
			err = metrics.RegisterClient(reg, "bacnet", cli)
		}
		if err == nil {
			err = metrics.RegisterDatalink(reg, "bacnet", dl)
		}
		if err == nil {
			s.metrics, err = metrics.Serve(addr, reg, l)
		}
		if err != nil {
			s.close()
			return nil, err
		}
	}

	return s, nil
}

func (s *session) close() {
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.metrics.Shutdown(ctx)
	}
	_ = s.client.Close()
	_ = s.datalink.Close()
}
