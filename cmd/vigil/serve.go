package main

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the expiry sweep and scheduled runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer srv.Close()
		return srv.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
