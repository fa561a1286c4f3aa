package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ejc3/workflow/internal/cli"
)

// newLoginCommand persists a server URL and bearer token to ~/.wkfctl.yaml.
// Unlike the reference CLI's username/password exchange, this system's
// AuthProvider is an external collaborator (spec.md §1); wkfctl takes an
// already-issued token rather than owning a login endpoint.
func newLoginCommand() *cobra.Command {
	var server, token, caCertPath string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Persist a server URL and bearer token for subsequent commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			session := cli.Session{ServerURL: server, Token: token, CACertPath: caCertPath}
			if err := session.Save(); err != nil {
				return err
			}
			fmt.Printf("Logged in to %s\n", server)
			return nil
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "", "Server URL, e.g. https://localhost:8443 (required)")
	cmd.Flags().StringVarP(&token, "token", "t", "", "Bearer token issued by the AuthProvider (required)")
	cmd.Flags().StringVar(&caCertPath, "ca-cert", "", "Path to a custom CA certificate")
	cmd.MarkFlagRequired("server")
	cmd.MarkFlagRequired("token")

	return cmd
}
