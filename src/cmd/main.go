package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vibemint",
	Short: "NFT mint service, pipeline and gallery for Base Sepolia",
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(ownedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
