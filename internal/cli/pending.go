package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvanko/walletgate/internal/manager"
)

func init() {
	rootCmd.AddCommand(pendingCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show the signing request awaiting a decision",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := manager.NewClient("http://" + cfg.Manager.Listen).Pending(ctx)
	if err != nil {
		return err
	}
	if req == nil {
		fmt.Println("No signing request pending.")
		return nil
	}

	out, _ := json.MarshalIndent(req, "", "  ")
	fmt.Println(string(out))
	return nil
}
