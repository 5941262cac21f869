package cmd

import (
	"log/slog"
	"os"

	"github.com/sigweihq/smartwallet/pkg/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	networkType string

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd is the base command when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "smartwallet",
	Short: "Build and sign smart account transactions",
	Long: `smartwallet resolves the smart account of an owner key, authorizes clauses
through it and produces a signed transaction, optionally sponsored by a fee delegator.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if networkType != "" && networkType != loaded.Network.Type {
			loaded.Network.Type = networkType
			loaded.Network.FactoryAddress = ""
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		cfg = loaded
		logger = cfg.NewLogger(cmd.ErrOrStderr())
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./smartwallet.yaml)")
	rootCmd.PersistentFlags().StringVar(&networkType, "network", "", "network type: mainnet, testnet, solo or custom")

	rootCmd.AddCommand(chainIDCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(buildCmd)
}
