/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-oracle/core/config"
	"github.com/AvaProtocol/ap-oracle/node"
)

var (
	runNodeCmd = &cobra.Command{
		Use:   "run-node",
		Short: "start the oracle node",
		Long: `Start polling every chain of the config file and serve the node API.
NODE_MNEMONIC must be set, either in the environment or in a .env file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("cannot load config %s: %w", configPath, err)
			}

			ctx := context.Background()
			n, err := node.NewNodeFromConfig(ctx, c)
			if err != nil {
				return err
			}
			return n.Start(ctx)
		},
	}
)

func init() {
	rootCmd.AddCommand(runNodeCmd)
}
