package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	gatewayhttp "github.com/promptgate/gateway/internal/adapter/inbound/http"
	"github.com/promptgate/gateway/internal/config"
	"github.com/promptgate/gateway/internal/eval"
	"github.com/promptgate/gateway/internal/policy/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway server",
	Long: `Start the policy evaluation gateway's HTTP server.

Examples:
  # Start with config file settings
  gateway start

  # Start with a specific config file
  gateway --config /path/to/gateway.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// signal.NotifyContext cancels ctx on the first SIGINT/SIGTERM and
	// restores default handling so a second signal forces an immediate exit.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("gateway stopped")
	return nil
}

// run wires the policy store, evaluator, and HTTP transport together and
// blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.GatewayConfig, logger *slog.Logger) error {
	policyStore, err := store.Load(cfg.Policy.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	logger.Info("policy loaded",
		"path", cfg.Policy.Path,
		"rules", len(policyStore.Snapshot().Compiled.Rules),
	)

	evaluator := eval.New(policyStore)

	shutdownTimeout, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 10 * time.Second
		logger.Warn("invalid shutdown_timeout, using default",
			"value", cfg.Server.ShutdownTimeout, "default", shutdownTimeout)
	}

	transport := gatewayhttp.NewHTTPTransport(evaluator, policyStore,
		gatewayhttp.WithAddr(cfg.Server.Addr),
		gatewayhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		gatewayhttp.WithLogger(logger),
		gatewayhttp.WithShutdownTimeout(shutdownTimeout),
		gatewayhttp.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		gatewayhttp.WithVersion(Version),
	)

	printBanner(Version, cfg.Server.Addr, cfg.DevMode, len(policyStore.Snapshot().Compiled.Rules))

	logger.Info("gateway starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"addr", cfg.Server.Addr,
		"policy_path", cfg.Policy.Path,
	)

	return transport.Start(ctx)
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printBanner prints a formatted startup banner to stderr.
func printBanner(version, addr string, devMode bool, ruleCount int) {
	const (
		reset  = "\033[0m"
		bold   = "\033[1m"
		cyan   = "\033[36m"
		green  = "\033[32m"
		yellow = "\033[33m"
		dim    = "\033[2m"
	)

	evalURL := fmt.Sprintf("http://localhost%s/v1/eval", addr)
	if !strings.HasPrefix(addr, ":") {
		evalURL = fmt.Sprintf("http://%s/v1/eval", addr)
	}

	modeStr := green + "production" + reset
	if devMode {
		modeStr = yellow + "development" + reset
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  %s%sgateway %s%s\n", bold, cyan, version, reset)
	fmt.Fprintf(os.Stderr, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(os.Stderr, "  %-10s %s\n", "Eval:", evalURL)
	fmt.Fprintf(os.Stderr, "  %-10s %s\n", "Mode:", modeStr)
	fmt.Fprintf(os.Stderr, "  %-10s %d active\n", "Rules:", ruleCount)
	fmt.Fprintf(os.Stderr, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(os.Stderr, "\n")
}
