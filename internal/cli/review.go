package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvanko/walletgate/internal/manager"
	"github.com/pvanko/walletgate/internal/risk"
	"github.com/pvanko/walletgate/internal/surface"
)

func init() {
	rootCmd.AddCommand(reviewCmd)
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review the pending signing request interactively",
	Long: "Loads the pending request from the daemon, fetches a risk score, and asks\n" +
		"for an approve/reject decision on the terminal. Requires an interactive\n" +
		"session: piped input never decides anything.",
	RunE: runReview,
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client := manager.NewClient("http://" + cfg.Manager.Listen)
	sess, err := surface.Load(ctx, client, client, cfg.Manager.StaleAfter.Std())
	switch {
	case errors.Is(err, surface.ErrNothingPending):
		fmt.Println("No signing request pending.")
		return nil
	case errors.Is(err, surface.ErrStale):
		fmt.Printf("Pending request is stale, not actionable: %v\n", err)
		return nil
	case err != nil:
		return err
	}

	req := sess.Request()
	assessCtx, assessCancel := context.WithTimeout(ctx, 30*time.Second)
	summary, err := sess.Assess(assessCtx, risk.NewClient(cfg.Risk.BaseURL))
	assessCancel()
	if err != nil {
		fmt.Printf("Risk service unavailable (%v), deciding without a score.\n", err)
		summary = nil
	}

	outcome, decided := surface.Ask(req, summary)
	if !decided {
		fmt.Println("No decision taken.")
		return nil
	}

	if err := sess.Decide(ctx, outcome); err != nil {
		if errors.Is(err, manager.ErrStaleDecision) {
			fmt.Println("The request was replaced while you were deciding; nothing applied.")
			return nil
		}
		return err
	}
	fmt.Printf("Recorded %s for %s\n", outcome, req.CorrelationID)
	return nil
}
