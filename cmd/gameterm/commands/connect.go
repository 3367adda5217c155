package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/moolen/gameterm/internal/aliasstore"
	"github.com/moolen/gameterm/internal/builtin"
	"github.com/moolen/gameterm/internal/catalog"
	"github.com/moolen/gameterm/internal/commands"
	"github.com/moolen/gameterm/internal/complete"
	"github.com/moolen/gameterm/internal/config"
	"github.com/moolen/gameterm/internal/interpreter"
	"github.com/moolen/gameterm/internal/lifecycle"
	"github.com/moolen/gameterm/internal/logging"
	"github.com/moolen/gameterm/internal/terminal"
	"github.com/moolen/gameterm/internal/tracing"
	"github.com/moolen/gameterm/internal/transport"
)

var (
	serverURL    string
	userName     string
	accessLevel  int
	metricsAddr  string
	plainMode    bool
	catalogPath  string
	policyPath   string
	shutdownWait time.Duration
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a game server",
	Long: `Connect to a game server and open the terminal. Lines you type are
run as commands; "help" lists what you can do.

The full-screen interface is used when stdin and stdout are terminals;
otherwise, or with --plain, gameterm reads lines from stdin.`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&serverURL, "server", "", "Websocket URL of the game server (overrides server_url)")
	connectCmd.Flags().StringVar(&userName, "user", "", "User name (overrides user.name)")
	connectCmd.Flags().IntVar(&accessLevel, "level", -1, "Initial access level (overrides user.access_level)")
	connectCmd.Flags().StringVar(&catalogPath, "catalog", "", "Command catalog file (overrides catalog_path)")
	connectCmd.Flags().StringVar(&policyPath, "policy", "", "Command policy file to watch (overrides policy_path)")
	connectCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	connectCmd.Flags().BoolVar(&plainMode, "plain", false, "Use the line-mode interface")
	connectCmd.Flags().DurationVar(&shutdownWait, "shutdown-timeout", 5*time.Second, "Grace period for each component on exit")
}

// applyConnectFlags overrides config values with flags the user set.
func applyConnectFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = serverURL
	}
	if flags.Changed("user") {
		cfg.User.Name = userName
	}
	if flags.Changed("level") {
		cfg.User.AccessLevel = accessLevel
	}
	if flags.Changed("catalog") {
		cfg.CatalogPath = catalogPath
	}
	if flags.Changed("policy") {
		cfg.PolicyPath = policyPath
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
}

// surface is the terminal the interpreter reads from and writes to.
type surface interface {
	interpreter.OutputSink
	interpreter.InputSurface
}

func runConnect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyConnectFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fullScreen := !plainMode && terminal.IsTerminal()
	closeLog, err := redirectLog(fullScreen)
	if err != nil {
		return err
	}
	defer closeLog()

	logger := logging.GetLogger("gameterm")
	logger.Info("Starting gameterm %s", Version)

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	aliases, skipped, err := commands.NewAliases(registry, aliasstore.New(cfg.AliasPath))
	if err != nil {
		return err
	}
	for _, name := range skipped {
		logger.Warn("Ignoring stored alias %q: it is empty or shadows a command", name)
	}

	completer, err := complete.New(registry, aliases, complete.DefaultCacheSize)
	if err != nil {
		return err
	}

	provider, err := tracing.New(cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := interpreter.NewMetrics(promRegistry)

	var (
		ui       surface
		tui      *terminal.TUI
		runUI    func(ctx context.Context, h terminal.Handlers) error
		onStatus func(bool)
	)
	if fullScreen {
		tui = terminal.NewTUI(terminal.TUIConfig{Trigger: cfg.CompletionTrigger})
		ui = tui
		onStatus = tui.SetOnline
		runUI = func(ctx context.Context, h terminal.Handlers) error {
			tui.SetHandlers(h)
			return tui.Run(ctx)
		}
	} else {
		line := terminal.NewLineSurface(terminal.LineConfig{Trigger: cfg.CompletionTrigger})
		ui = line
		runUI = line.Run
	}

	client, err := transport.New(transport.Config{
		URL:               cfg.ServerURL,
		VersionConstraint: cfg.ServerVersionConstraint,
		OnStatus: func(online bool) {
			if onStatus != nil {
				onStatus(online)
			}
			if online {
				ui.Enqueue([]string{"connected to " + cfg.ServerURL}, commands.OutputOptions{Notice: true})
			} else {
				ui.Enqueue([]string{"disconnected, type \"reconnect\" to retry now"}, commands.OutputOptions{Notice: true})
			}
		},
	})
	if err != nil {
		return err
	}

	interp, err := interpreter.New(interpreter.Config{
		Registry:    registry,
		Aliases:     aliases,
		Completer:   completer,
		Transport:   client,
		Output:      ui,
		Input:       ui,
		User:        commands.User{Name: cfg.User.Name, AccessLevel: cfg.User.AccessLevel},
		PacingDelay: cfg.PacingDelay,
		Metrics:     metrics,
		Tracer:      provider.Tracer("github.com/moolen/gameterm/internal/interpreter"),
	})
	if err != nil {
		return err
	}
	client.SetPushHandler(interp.Push)

	manager := lifecycle.NewManager()
	manager.SetShutdownTimeout(shutdownWait)
	if err := manager.Register(provider); err != nil {
		return err
	}
	if err := manager.Register(interp, provider); err != nil {
		return err
	}
	if err := manager.Register(client, interp); err != nil {
		return err
	}
	if cfg.PolicyPath != "" {
		watcher, err := config.NewPolicyWatcher(config.PolicyWatcherConfig{FilePath: cfg.PolicyPath}, policyApplier(interp))
		if err != nil {
			return err
		}
		if err := manager.Register(watcher, interp); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := manager.Stop(context.Background()); err != nil {
			logger.Warn("Shutdown incomplete: %v", err)
		}
	}()

	ui.Enqueue([]string{fmt.Sprintf("gameterm %s, signed in as %s. Type \"help\" for commands.",
		Version, cfg.User.Name)}, commands.OutputOptions{Notice: true})

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		serveMetrics(gctx, g, cfg.MetricsAddr, promRegistry, logger)
	}
	g.Go(func() error {
		// leaving the terminal ends the client
		defer stop()
		return runUI(gctx, terminal.Handlers{
			Submit:   interp.Submit,
			Complete: interp.RequestCompletion,
			Cancel:   interp.Cancel,
			// piped input ends long before paced commands are sent
			EndOfInput: func() {
				if err := interp.WaitIdle(gctx); err != nil {
					logger.Warn("Stopped before all input was processed: %v", err)
				}
			},
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// buildRegistry registers the built-in commands, then the catalog.
// Built-ins win name collisions.
func buildRegistry(cfg *config.Config) (*commands.Registry, error) {
	var defs []commands.Definition
	if cfg.CatalogPath != "" {
		loaded, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		defs = loaded
	}

	registry := commands.NewRegistry(cfg.CommandChars)
	for _, name := range registry.Register(builtin.Definitions(), defs) {
		logging.GetLogger("gameterm").Warn("Catalog command %q collides with a built-in and is ignored", name)
	}
	return registry, nil
}

// policyApplier routes policy file changes through the interpreter loop.
func policyApplier(interp *interpreter.Interpreter) config.PolicyCallback {
	return func(policy *config.PolicyFile) error {
		for _, entry := range policy.Commands {
			interp.ApplyPatch(entry.Name, catalog.Patch(entry))
		}
		return nil
	}
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Serving metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// redirectLog sends logs to --log-file when set. The full-screen
// interface owns the terminal, so without a file its logs are dropped.
func redirectLog(fullScreen bool) (func(), error) {
	if logFile == "" {
		if fullScreen {
			prev := logging.SetOutput(io.Discard)
			return func() { logging.SetOutput(prev) }, nil
		}
		return func() {}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	prev := logging.SetOutput(f)
	return func() {
		logging.SetOutput(prev)
		f.Close()
	}, nil
}
