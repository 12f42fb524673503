package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/syssam/velograph/config"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/dialect/dgraph"
)

// opener connects to the store described by the configuration.
type opener func(ctx context.Context, cfg *config.Config, log *slog.Logger) (dialect.Driver, error)

// defaultOpener dials the configured Dgraph alpha and wraps the connection
// with tracing, statistics and, at debug level, request logging.
func defaultOpener(ctx context.Context, cfg *config.Config, log *slog.Logger) (dialect.Driver, error) {
	opts := []dgraph.Option{dgraph.WithLogger(log)}
	if cfg.Store.User != "" {
		opts = append(opts, dgraph.WithCredentials(cfg.Store.User, cfg.Store.Password))
	}
	drv, err := dgraph.Open(ctx, cfg.Store.Address, opts...)
	if err != nil {
		return nil, err
	}
	sd, err := wrap(drv, cfg, log, nil)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}
	return sd, nil
}

// wrap layers the instrumentation drivers over drv.
func wrap(drv dialect.Driver, cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (*dialect.StatsDriver, error) {
	metrics, err := dialect.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	var inner dialect.Driver = dialect.NewTraceDriver(drv)
	if log.Enabled(context.Background(), slog.LevelDebug) {
		inner = dialect.NewDebugDriver(inner, dialect.DebugWithLogger(log))
	}
	return dialect.NewStatsDriver(inner,
		dialect.WithSlowThreshold(cfg.Stats.SlowThreshold.Std()),
		dialect.WithMetrics(metrics),
		dialect.WithSlowQueryHook(func(ctx context.Context, op, statement string, d time.Duration) {
			log.WarnContext(ctx, "slow request detected", "op", op, "duration", d, "statement", statement)
		}),
	), nil
}

// cli holds the state shared by the commands of one invocation.
type cli struct {
	open       opener
	configPath string
	cfg        *config.Config
	log        *slog.Logger
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:           "velograph",
		Short:         "Schema and migration tooling for Dgraph entity maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = cfg.Logger(cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "velograph.yaml", "path of the configuration file")
	root.AddCommand(c.schemaCmd(), c.migrateCmd())
	return root
}

// withStore runs fn against an open store connection bounded by the
// configured timeout.
func (c *cli) withStore(cmd *cobra.Command, fn func(ctx context.Context, drv dialect.Driver) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), c.cfg.Store.Timeout.Std())
	defer cancel()
	drv, err := c.open(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := drv.Close(); err != nil {
			c.log.Warn("close store connection", "error", err)
		}
	}()
	if err := fn(ctx, drv); err != nil {
		return err
	}
	if sd, ok := drv.(*dialect.StatsDriver); ok {
		c.log.Debug("store requests", "stats", sd.QueryStats().Stats().String())
	}
	return nil
}

// readFile reads a named file, or the command input for "-".
func readFile(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
