// Command wkfctl is the reference CLI for the World HTTP surface, mirroring
// the reference pipeline CLI's command tree (login, list, trigger, history)
// renamed to this system's nouns (runs list/trigger/history/get), adapted
// from the reference's client package into internal/cli's Session/Client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ejc3/workflow/internal/cli"
	"github.com/ejc3/workflow/internal/httpapi"
)

func main() {
	root := &cobra.Command{Use: "wkfctl", Short: "CLI for the workflow storage/execution substrate"}
	root.AddCommand(newLoginCommand())
	root.AddCommand(newRunsCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func currentClient() (*cli.Client, error) {
	session, err := cli.LoadSession()
	if err != nil {
		return nil, err
	}
	if session.ServerURL == "" {
		return nil, fmt.Errorf("not logged in; run `wkfctl login` first")
	}
	return cli.NewClient(session), nil
}

func printEnvelope(env *httpapi.Envelope) {
	data, err := marshalIndent(env.Data)
	if err != nil {
		fmt.Println(env.Message)
		return
	}
	fmt.Println(string(data))
}
