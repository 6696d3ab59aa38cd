package cli

import (
	"github.com/spf13/cobra"

	"github.com/pvanko/walletgate/internal/model"
)

func init() {
	rootCmd.AddCommand(rejectCmd)
}

var rejectCmd = &cobra.Command{
	Use:   "reject [correlation-id]",
	Short: "Reject the pending signing request",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decide(args, model.OutcomeReject)
	},
}
