package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var (
	configPath = "./config/node.yaml"
	rootCmd    = &cobra.Command{
		Use:   "ap-oracle",
		Short: "Ava Protocol oracle node CLI",
		Long: `CLI to run and inspect an oracle node.
The node mnemonic is read from the NODE_MNEMONIC environment variable or a .env file.

Such as "ap-oracle run-node" or "ap-oracle derive-wallet" and so on
`,
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/node.yaml", "Path to config file")
}
