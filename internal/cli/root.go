package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pvanko/walletgate/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "walletgate",
	Short: "Local signing firewall for wallet JSON-RPC traffic",
	Long: "walletgate sits between a dapp and its wallet node. Signing requests are\n" +
		"suspended until a human approves or rejects them; everything else passes\n" +
		"through untouched. Undecided requests fail closed.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config YAML (default: ~/.walletgate/config.yaml)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
