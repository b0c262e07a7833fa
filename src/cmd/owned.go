package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"vibemint/src/chain"
	cfg "vibemint/src/configuration"
	"vibemint/src/gallery"
	"vibemint/src/wallet"
)

var ownedCmd = &cobra.Command{
	Use:   "owned [address]",
	Short: "List the NFTs minted to an account",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOwned,
}

func runOwned(cmd *cobra.Command, args []string) error {
	config := cfg.ReadProperties()
	if config.Chain.ContractAddress == "" {
		return fmt.Errorf("CHAIN_CONTRACT_ADDRESS is not configured")
	}

	session := wallet.NewSession(config)
	ctx := cmd.Context()
	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer session.Disconnect()

	account := session.Current().Account
	if len(args) == 1 {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("%s is not a valid address", args[0])
		}
		account = common.HexToAddress(args[0])
	}
	if account == (common.Address{}) {
		return fmt.Errorf("no account: pass an address or configure CHAIN_PRIVATE_KEY")
	}

	contract, err := chain.NewContract(common.HexToAddress(config.Chain.ContractAddress), session.Backend())
	if err != nil {
		return err
	}
	reader := gallery.NewReader(contract, config.Pin.Gateway, config.Client.ReadTimeout)

	items, err := reader.ListOwned(ctx, account)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Printf("no NFTs minted to %s yet\n", account)
		return nil
	}
	for _, item := range items {
		name := fmt.Sprintf("NFT #%s", item.TokenID)
		image := ""
		if item.Metadata != nil {
			name = item.Metadata.Name
			image = item.Metadata.Image
		}
		fmt.Printf("#%s\t%s\t%s\t%s\n", item.TokenID, name, item.TokenURI, image)
	}
	return nil
}
