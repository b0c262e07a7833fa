package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"vibemint/src/chain"
	cfg "vibemint/src/configuration"
	"vibemint/src/mint"
	"vibemint/src/wallet"
)

var (
	mintName        string
	mintDescription string
)

var mintCmd = &cobra.Command{
	Use:   "mint <file>",
	Short: "Upload an image and mint it as an NFT",
	Args:  cobra.ExactArgs(1),
	RunE:  runMint,
}

func init() {
	mintCmd.Flags().StringVar(&mintName, "name", "", "display name (defaults to the filename stem)")
	mintCmd.Flags().StringVar(&mintDescription, "description", "", "display description")
}

func runMint(cmd *cobra.Command, args []string) error {
	config := cfg.ReadProperties()
	if config.Chain.ContractAddress == "" {
		return fmt.Errorf("CHAIN_CONTRACT_ADDRESS is not configured")
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("can not read %s: %w", args[0], err)
	}
	asset := mint.Asset{
		Filename:    filepath.Base(args[0]),
		ContentType: http.DetectContentType(content),
		Content:     content,
	}

	session := wallet.NewSession(config)
	ctx := cmd.Context()
	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer session.Disconnect()

	contract, err := chain.NewContract(common.HexToAddress(config.Chain.ContractAddress), session.Backend())
	if err != nil {
		return err
	}
	uploader := mint.NewClient(config.Client.UploaderURL, config.Client.ReadTimeout)
	pipeline := mint.NewPipeline(session, uploader, contract, func(status mint.Status) {
		if status.TxHash != (common.Hash{}) {
			log.Printf("mint: %s (tx %s)", status.State, status.TxHash)
			return
		}
		log.Printf("mint: %s", status.State)
	})

	waitCtx, cancel := context.WithTimeout(ctx, config.Chain.ConfirmTimeout)
	defer cancel()
	status, err := pipeline.Mint(waitCtx, asset, mintName, mintDescription)
	if err != nil {
		if status.TxHash != (common.Hash{}) {
			return fmt.Errorf("%w (pending transaction %s)", err, status.TxHash)
		}
		return err
	}

	fmt.Printf("minted %s\n", status.TokenURI)
	fmt.Printf("transaction %s\n", status.TxHash)
	return nil
}
