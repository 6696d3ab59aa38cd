package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvanko/walletgate/internal/manager"
	"github.com/pvanko/walletgate/internal/model"
)

func init() {
	rootCmd.AddCommand(approveCmd)
}

var approveCmd = &cobra.Command{
	Use:   "approve [correlation-id]",
	Short: "Approve the pending signing request",
	Long: "Approves the pending request. With an explicit correlation ID the decision\n" +
		"only applies if that exact request is still pending; a replaced request is\n" +
		"reported, not resolved.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args, model.OutcomeApprove)
	},
}

func decide(args []string, outcome model.Outcome) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := manager.NewClient("http://" + cfg.Manager.Listen)

	id := ""
	if len(args) > 0 {
		id = args[0]
	} else {
		req, err := client.Pending(ctx)
		if err != nil {
			return err
		}
		if req == nil {
			fmt.Println("No signing request pending.")
			return nil
		}
		id = req.CorrelationID
	}

	err = client.Decide(ctx, model.DecisionRecord{
		CorrelationID: id,
		Outcome:       outcome,
		DecidedAt:     time.Now().UTC(),
	})
	if errors.Is(err, manager.ErrStaleDecision) {
		fmt.Printf("Request %s is no longer pending; nothing applied.\n", id)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %s for %s\n", outcome, id)
	return nil
}
