package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/handoff/internal/app"
	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/server"
)

const shutdownTimeout = 10 * time.Second

// defaultConfigPaths are tried in order when no -config flag is given
var defaultConfigPaths = []string{"handoff.toml", "deployments/local/handoff.toml"}

// configPaths collects repeated -config flags; later files override earlier ones
type configPaths []string

func (c *configPaths) String() string {
	return strings.Join(*c, ",")
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (repeatable, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Handoff version %s\n", common.GetFullVersion())
		return
	}

	port := *serverPort
	if *serverPortP != 0 {
		port = *serverPortP
	}

	// Order matters: config (defaults, files, env), CLI overrides, logger, banner
	config, paths, err := loadConfig(configFiles, port, *serverHost)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", paths).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", paths).
		Str("environment", config.Environment).
		Str("address", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)).
		Str("backend_mode", string(config.Backend.Mode)).
		Str("provider", string(config.LLM.DefaultProvider)).
		Str("badger_path", config.Storage.Badger.Path).
		Msg("Configuration loaded")

	if err := run(config, logger); err != nil {
		logger.Error().Err(err).Msg("Handoff exited with error")
		os.Exit(1)
	}
}

// loadConfig resolves the config files to read, then applies flag overrides
// and validates the result
func loadConfig(paths []string, port int, host string) (*common.Config, []string, error) {
	if len(paths) == 0 {
		for _, candidate := range defaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				paths = []string{candidate}
				break
			}
		}
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		return nil, paths, err
	}

	common.ApplyFlagOverrides(config, port, host)
	if err := config.Validate(); err != nil {
		return nil, paths, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, paths, nil
}

// run serves until SIGINT/SIGTERM or a server failure, then shuts down
func run(config *common.Config, logger arbor.ILogger) error {
	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	srv := server.New(application)

	serverErr := make(chan error, 1)
	go func() {
		defer common.Recover(logger, "http-server")
		serverErr <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case runErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	return runErr
}
