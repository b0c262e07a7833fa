package main

import (
	"github.com/spf13/cobra"

	cfg "vibemint/src/configuration"
	server "vibemint/src/server"
)

// serveCmd runs the upload service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload-and-pin HTTP service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	config := cfg.ReadProperties()
	server.RunServer(config)
}
