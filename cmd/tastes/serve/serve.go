// Package servecmder provides the serve command that runs the ingestion API,
// the async update workers, and the MCP server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tastes/api"
	mcpserver "github.com/papercomputeco/tastes/api/mcp"
	"github.com/papercomputeco/tastes/cmd/tastes/stack"
	"github.com/papercomputeco/tastes/ingest"
	"github.com/papercomputeco/tastes/ingest/worker"
	"github.com/papercomputeco/tastes/pkg/config"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/recommend"
)

type serveCommander struct {
	flags     serveFlags
	debug     bool
	jsonLogs  bool
	logFile   string
	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
}

type serveFlags struct {
	listen        string
	mcp           bool
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	redisAddr     string
	vectorProv    string
	vectorTarget  string
	collection    string
	embedProv     string
	embedTarget   string
	embedModel    string
	embedDims     uint
	decay         float64
	workers       uint
	streamProv    string
	brokers       string
	topic         string
}

const serveLongDesc string = `Run the tastes service.

Starts the HTTP API for logging interactions and reading preference state,
the worker pool that applies asynchronous updates, and (unless disabled)
the MCP server at /mcp. Engine tuning in config.toml is reloaded while
running.

Flags override environment variables (TASTES_*), which override
config.toml, which overrides built-in defaults.`

const serveShortDesc string = "Run the tastes service"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, config.ServeFlagKeys)
			cmder.viper = v
			cmder.configDir = configDir
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListen, &f.listen)
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagMCP, &f.mcp)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStorageDriver, &f.storageDriver)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagPostgresDSN, &f.postgresDSN)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagRedisAddr, &f.redisAddr)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagVectorStoreProv, &f.vectorProv)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagCollection, &f.collection)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingProv, &f.embedProv)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingTgt, &f.embedTarget)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingModel, &f.embedModel)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagEmbeddingDims, &f.embedDims)
	config.AddFloatFlag(cmd, config.ServeFlags, config.FlagDecay, &f.decay)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagWorkers, &f.workers)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventStreamProv, &f.streamProv)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagBrokers, &f.brokers)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagTopic, &f.topic)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write structured JSON logs")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	cfg := config.FromViper(c.viper)

	svc, err := newService(ctx, cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if target := c.viper.ConfigFileUsed(); target != "" {
		reloader, err := newTuningReloader(target, c.viper, svc.stack.Engine, c.logger)
		if err != nil {
			c.logger.Warn("config reload disabled", "error", err)
		} else {
			go reloader.Run(ctx)
			defer reloader.Close()
		}
	}

	errChan := make(chan error, 1)
	go func() {
		if err := svc.api.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	}
}

// setupLogger builds the console logger and, with --log-file, tees every
// record as JSON into that file.
func (c *serveCommander) setupLogger() (func(), error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.jsonLogs),
		logger.WithPretty(!c.jsonLogs),
	)
	if c.logFile == "" {
		c.logger = console
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	c.logger = logger.Multi(console, logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	))
	return func() { _ = f.Close() }, nil
}

// service is the fully wired set of servers behind "tastes serve".
type service struct {
	stack  *stack.Stack
	pool   *worker.Pool
	ingest *ingest.Service
	api    *api.Server
}

func newService(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (*service, error) {
	st, err := stack.Build(ctx, cfg, configDir, log)
	if err != nil {
		return nil, err
	}
	svc := &service{stack: st}

	svc.pool, err = worker.NewPool(&worker.Config{
		Engine:     st.Engine,
		Publisher:  st.Publisher,
		NumWorkers: cfg.Engine.Workers,
		QueueSize:  cfg.Engine.QueueSize,
		Logger:     log,
	})
	if err != nil {
		svc.Close()
		return nil, err
	}

	svc.ingest, err = ingest.NewService(ingest.Config{
		Log:       st.Storage,
		Engine:    st.Engine,
		Pool:      svc.pool,
		Publisher: st.Publisher,
		Logger:    log,
	})
	if err != nil {
		svc.Close()
		return nil, err
	}

	deps := api.Dependencies{
		Ingest: svc.ingest,
		States: st.Engine,
	}
	if st.Index != nil {
		deps.Recommender = recommend.NewRecommender(st.Engine, st.Index, log)
	}

	if cfg.API.MCP {
		m, err := mcpserver.NewServer(mcpserver.Config{
			States:      st.Engine,
			Recommender: deps.Recommender,
			Logger:      log,
		})
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("creating MCP server: %w", err)
		}
		deps.MCP = m.Handler()
	}

	svc.api, err = api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, deps, log)
	if err != nil {
		svc.Close()
		return nil, err
	}

	return svc, nil
}

// Close stops the API, drains queued updates, then releases the stack.
func (s *service) Close() error {
	if s.api != nil {
		_ = s.api.Shutdown()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return s.stack.Close()
}
