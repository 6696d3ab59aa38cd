package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pvanko/walletgate/internal/audit"
	"github.com/pvanko/walletgate/internal/config"
	"github.com/pvanko/walletgate/internal/logging"
	"github.com/pvanko/walletgate/internal/manager"
	"github.com/pvanko/walletgate/internal/notify"
	"github.com/pvanko/walletgate/internal/store"
	"github.com/pvanko/walletgate/internal/surface"
)

var (
	daemonListen string
	daemonMode   string
)

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringVar(&daemonListen, "listen", "", "Address to listen on (default from config)")
	daemonCmd.Flags().StringVar(&daemonMode, "surface", "", "Surface mode: window, tab or terminal (default from config)")
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the decision daemon",
	Long: "Receives intercepted signing requests from shadow instances, opens the\n" +
		"decision surface, and records the human's decision. One request pending\n" +
		"at a time; a newer request replaces the older one.",
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if daemonListen != "" {
		cfg.Manager.Listen = daemonListen
	}
	if daemonMode != "" {
		cfg.Surface.Mode = daemonMode
	}

	logger := logging.Must(cfg.LogLevel)
	defer logger.Sync()

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	var auditLog *audit.Log
	if cfg.AuditLog != "" {
		auditLog, err = audit.Open(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer auditLog.Close()
	}

	primary, fallback := buildHosts(cfg, logger)
	mgr := manager.New(manager.Config{
		StaleAfter: cfg.Manager.StaleAfter.Std(),
	}, st, primary, fallback, auditLog, notify.NewDispatcher(cfg.Webhooks), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down daemon...")
		cancel()
	}()

	go mgr.Run(ctx)

	fmt.Printf("walletgate daemon listening on %s\n", cfg.Manager.Listen)
	fmt.Printf("Surface mode: %s\n", cfg.Surface.Mode)
	fmt.Println("Press Ctrl+C to stop")

	return manager.NewServer(cfg.Manager.Listen, mgr, logger).Start(ctx)
}

// buildHosts maps the configured surface mode to hosts. Window mode
// falls back to a plain tab when the standalone frame cannot open.
func buildHosts(cfg *config.Config, logger *zap.Logger) (surface.Host, surface.Host) {
	url := cfg.Surface.URL
	if url == "" {
		url = "http://" + cfg.Manager.Listen + "/v1/requests/pending"
	}
	browser := cfg.Surface.Browser
	if browser == "" {
		browser = "chromium"
	}

	switch cfg.Surface.Mode {
	case "window":
		return surface.NewBrowserHost(browser, url, "window", logger),
			surface.NewBrowserHost(browser, url, "tab", logger)
	case "tab":
		return surface.NewBrowserHost(browser, url, "tab", logger), nil
	default:
		return surface.NewNopHost(), nil
	}
}
