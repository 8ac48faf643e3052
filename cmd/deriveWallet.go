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
	walletIndices   []uint
	deriveWalletCmd = &cobra.Command{
		Use:   "derive-wallet",
		Short: "print the master public key and wallet addresses of the node mnemonic",
		Long: `Derive the addresses the node signs with, at path m/0/0/{index}.
Index 0 is the admin wallet. Use --index to pick more indices, e.g.

ap-oracle derive-wallet --index 1 --index 777`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mnemonic := config.LoadMnemonic()
			if mnemonic == "" {
				return config.ErrMissingMnemonic
			}

			xpub, err := hdwallet.MasterExtendedPublicKey(mnemonic)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "xpub: %s\n", xpub)

			for _, index := range append([]uint{uint(hdwallet.AdminWalletIndex)}, walletIndices...) {
				address, err := hdwallet.DeriveAddress(xpub, uint32(index))
				if err != nil {
					return fmt.Errorf("cannot derive index %d: %w", index, err)
				}
				fmt.Fprintf(out, "%d: %s\n", index, address.Hex())
			}
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(deriveWalletCmd)
	deriveWalletCmd.Flags().UintSliceVar(&walletIndices, "index", nil, "wallet index to derive, can be repeated")
}
