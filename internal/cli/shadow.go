package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pvanko/walletgate/internal/audit"
	"github.com/pvanko/walletgate/internal/bridge"
	"github.com/pvanko/walletgate/internal/delegate"
	"github.com/pvanko/walletgate/internal/logging"
	"github.com/pvanko/walletgate/internal/mailbox"
	"github.com/pvanko/walletgate/internal/manager"
	"github.com/pvanko/walletgate/internal/pagebus"
	"github.com/pvanko/walletgate/internal/shadow"
	"github.com/pvanko/walletgate/internal/store"
)

var (
	shadowListen string
	shadowWallet string
	shadowOrigin string
)

func init() {
	rootCmd.AddCommand(shadowCmd)
	shadowCmd.Flags().StringVar(&shadowListen, "listen", "", "Address to listen on (default from config)")
	shadowCmd.Flags().StringVar(&shadowWallet, "wallet", "", "Wallet JSON-RPC URL (default from config)")
	shadowCmd.Flags().StringVar(&shadowOrigin, "origin", "local", "Origin label attached to intercepted requests")
}

var shadowCmd = &cobra.Command{
	Use:   "shadow",
	Short: "Start the JSON-RPC front that intercepts signing requests",
	Long: "Listens for JSON-RPC traffic in place of the wallet node. Signing methods\n" +
		"are published to the decision daemon and suspended; everything else is\n" +
		"forwarded to the wallet untouched.\n" +
		"Point the dapp at this address instead of the wallet's.",
	RunE: runShadow,
}

func runShadow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if shadowListen != "" {
		cfg.Shadow.Listen = shadowListen
	}
	if shadowWallet != "" {
		cfg.Shadow.WalletURL = shadowWallet
	}

	logger := logging.Must(cfg.LogLevel)
	defer logger.Sync()

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	slot := delegate.NewSlot()
	slot.Offer(delegate.NewRPC(cfg.Shadow.WalletURL))

	bus := pagebus.New()
	defer bus.Close()
	box := mailbox.New()

	var rec shadow.Recorder
	if cfg.Shadow.AuditLog != "" {
		auditLog, err := audit.Open(cfg.Shadow.AuditLog)
		if err != nil {
			return fmt.Errorf("open shadow audit log: %w", err)
		}
		defer auditLog.Close()
		rec = auditLog
	}

	sh := shadow.New(shadow.Config{
		Origin:          shadowOrigin,
		PollInterval:    cfg.Shadow.PollInterval.Std(),
		DecisionTimeout: cfg.Shadow.DecisionTimeout.Std(),
	}, slot, bus, box, rec, logger)
	slot.Pin(sh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	daemon := manager.NewClient("http://" + cfg.Manager.Listen)
	br := bridge.New(bridge.Config{
		Origin:      shadowOrigin,
		CallbackURL: "http://" + cfg.Shadow.Listen + "/v1/messages",
	}, bus, box, st, daemon, logger)
	if err := br.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down shadow...")
		cancel()
	}()

	fmt.Printf("walletgate shadow listening on %s\n", cfg.Shadow.Listen)
	fmt.Printf("Wallet upstream: %s\n", cfg.Shadow.WalletURL)
	fmt.Printf("Point the dapp's RPC URL at http://%s\n", cfg.Shadow.Listen)
	fmt.Println("Press Ctrl+C to stop")

	srv := shadow.NewServer(cfg.Shadow.Listen, slot, logger)
	srv.OnMessage(br.Handle)
	return srv.Start(ctx)
}
