// Package servecmder provides the serve command, which runs the tiermem API
// and MCP server in front of a tiered memory.
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

	"github.com/papercomputeco/tiermem/api"
	"github.com/papercomputeco/tiermem/api/mcp"
	"github.com/papercomputeco/tiermem/pkg/config"
	"github.com/papercomputeco/tiermem/pkg/credentials"
	"github.com/papercomputeco/tiermem/pkg/logger"
)

type serveCommander struct {
	listen            string
	cacheProvider     string
	cacheTarget       string
	vectorProvider    string
	vectorTarget      string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	scorerProvider    string
	scorerTarget      string
	scorerModel       string
	weeklyThreshold   int
	promotionThresh   int
	workers           uint
	eventsProvider    string
	eventsBrokers     string
	retention         bool
	jsonLogs          bool
	logFile           string

	debug     bool
	configDir string
	viper     *viper.Viper
	logger    *slog.Logger
}

// serveFlags lists the registry keys serve binds to viper.
var serveFlags = []string{
	config.FlagListen,
	config.FlagCacheProvider,
	config.FlagCacheTarget,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagScorerProv,
	config.FlagScorerTgt,
	config.FlagScorerModel,
	config.FlagWeeklyThreshold,
	config.FlagPromotionThreshold,
	config.FlagWorkers,
	config.FlagEventsProv,
	config.FlagEventsBrokers,
	config.FlagRetention,
}

const serveLongDesc string = `Run the tiermem server.

Serves the HTTP API (/v1/memories, /v1/recall, /v1/windows), the MCP tool
server (/mcp) and Prometheus metrics (/metrics). Every backend is chosen
through configuration: flags override TIERMEM_* environment variables, which
override config.toml, which overrides the defaults.

Editing memory.weekly_threshold or memory.promotion_threshold in config.toml
while the server runs takes effect immediately.

Examples:
  tiermem serve
  tiermem serve --cache-provider redis --cache-target localhost:6379
  tiermem serve --vector-store-provider qdrant --vector-store-target localhost:6334
  tiermem serve --scorer-provider anthropic --events-provider kafka`

const serveShortDesc string = "Run the tiermem server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
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

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagCacheProvider, &cmder.cacheProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagCacheTarget, &cmder.cacheTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagScorerProv, &cmder.scorerProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagScorerTgt, &cmder.scorerTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagScorerModel, &cmder.scorerModel)
	config.AddIntFlag(cmd, config.Flags, config.FlagWeeklyThreshold, &cmder.weeklyThreshold)
	config.AddIntFlag(cmd, config.Flags, config.FlagPromotionThreshold, &cmder.promotionThresh)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProv, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddBoolFlag(cmd, config.Flags, config.FlagRetention, &cmder.retention)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

// newLogger builds the terminal logger and, with --log-file, a JSON file
// logger next to it. The returned func closes the file.
func (c *serveCommander) newLogger() (*slog.Logger, func() error, error) {
	term := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(!c.jsonLogs),
		logger.WithJSON(c.jsonLogs),
	)
	if c.logFile == "" {
		return term, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(term, file), f.Close, nil
}

func (c *serveCommander) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck
	c.logger = l

	cfg, err := config.FromViper(c.viper)
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}

	creds, err := credentials.NewStore(c.configDir)
	if err != nil {
		c.logger.Warn("credentials unavailable, using environment only", "error", err)
		creds = nil
	}

	st, err := buildStack(ctx, cfg, creds, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.memory.Close(); err != nil {
			c.logger.Warn("closing memory", "error", err)
		}
	}()

	c.logger.Info("memory ready",
		"cache", cfg.Cache.Provider,
		"vector_store", cfg.VectorStore.Provider,
		"embedding", cfg.Embedding.Provider,
		"scorer", cfg.Scorer.Provider,
		"events", cfg.Events.Provider,
		"weekly_threshold", cfg.Memory.WeeklyThreshold,
		"promotion_threshold", cfg.Memory.PromotionThreshold,
	)

	if st.compactor != nil {
		st.compactor.Start()
		defer st.compactor.Stop(context.Background())
	}

	config.Watch(c.viper, func(next *config.Config) {
		st.memory.SetThresholds(next.Memory.WeeklyThreshold, next.Memory.PromotionThreshold)
		weekly, promotion := st.memory.Thresholds()
		c.logger.Info("thresholds reloaded",
			"weekly_threshold", weekly,
			"promotion_threshold", promotion,
		)
	}, func(err error) {
		c.logger.Warn("ignoring config change", "error", err)
	})

	mcpServer, err := mcp.NewServer(mcp.Config{
		Memory: st.memory,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		MCPHandler: mcpServer.Handler(),
	}, st.memory, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return apiServer.Shutdown()
	}
}
