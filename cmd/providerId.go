/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AvaProtocol/ap-oracle/core/config"
	"github.com/AvaProtocol/ap-oracle/pkg/hdwallet"
)

var (
	xpubFlag      string
	providerIdCmd = &cobra.Command{
		Use:   "provider-id",
		Short: "print the provider id of the node",
		Long: `Compute the provider id the node filters logs on. It is derived from the
master public key, taken from --xpub or from NODE_MNEMONIC`,
		RunE: func(cmd *cobra.Command, args []string) error {
			xpub := xpubFlag
			if xpub == "" {
				mnemonic := config.LoadMnemonic()
				if mnemonic == "" {
					return config.ErrMissingMnemonic
				}

				var err error
				if xpub, err = hdwallet.MasterExtendedPublicKey(mnemonic); err != nil {
					return err
				}
			}

			id, err := hdwallet.ProviderID(xpub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.Hex())
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(providerIdCmd)
	providerIdCmd.Flags().StringVar(&xpubFlag, "xpub", "", "master extended public key, skips the mnemonic")
}
