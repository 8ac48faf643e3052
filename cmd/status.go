/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-oracle/core/config"
	"github.com/AvaProtocol/ap-oracle/storage"
)

var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Display node status",
		Long:  `Display the latest cycle report of every configured chain, read from the node database`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("cannot load config %s: %w", configPath, err)
			}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "📊 Node Status Report\n")
			fmt.Fprintf(out, "====================\n\n")
			fmt.Fprintf(out, "💾 Using database path: %s\n\n", c.DbPath)

			db, err := storage.NewWithPath(c.DbPath)
			if err != nil {
				fmt.Fprintf(out, "❌ Failed to open database: %v\n", err)
				fmt.Fprintf(out, "   💡 Stop the running node first, badger only allows one process\n")
				return err
			}
			defer db.Close()

			for _, chain := range c.Chains {
				if err := printChainStatus(out, db, chain); err != nil {
					return err
				}
			}
			return nil
		},
	}
)

func printChainStatus(out io.Writer, db storage.Storage, chain config.ChainConfig) error {
	fmt.Fprintf(out, "⛓  Chain %s (%s)\n", chain.Name, chain.ID)

	cycles, err := storage.CycleCount(db, chain.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "   Cycles run: %d\n", cycles)

	report, err := storage.LatestReport(db, chain.ID)
	if errors.Is(err, storage.ErrReportNotFound) {
		fmt.Fprintf(out, "   ❌ No cycle recorded yet\n\n")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "   Latest cycle: %s at block %d\n", report.CycleID, report.BlockNumber)
	fmt.Fprintf(out, "   Started: %s, took %s\n", report.StartedAt.Format("2006-01-02 15:04:05"), report.Duration)
	fmt.Fprintf(out, "   Result: %s\n", report.Result)
	if report.Error != "" {
		fmt.Fprintf(out, "   Error: %s\n", report.Error)
	}
	for key, n := range report.Counts {
		fmt.Fprintf(out, "   %s: %d\n", key, n)
	}
	fmt.Fprintf(out, "   Transactions sent: %d\n\n", len(report.Transactions))
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
