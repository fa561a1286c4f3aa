package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	runs := &cobra.Command{Use: "runs", Short: "Inspect and trigger workflow runs"}
	runs.AddCommand(newRunsListCommand())
	runs.AddCommand(newRunsGetCommand())
	runs.AddCommand(newRunsTriggerCommand())
	runs.AddCommand(newRunsHistoryCommand())
	return runs
}

func newRunsListCommand() *cobra.Command {
	var workflowName, status, cursor string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/runs?workflowName=%s&status=%s&cursor=%s&limit=%d", workflowName, status, cursor, limit)
			env, err := doRequest(http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			printEnvelope(env)
			return nil
		},
	}
	cmd.Flags().StringVar(&workflowName, "workflow", "", "Filter by workflow name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by run status")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor (last-seen runId)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	return cmd
}

func newRunsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [runId]",
		Short: "Get a single run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := doRequest(http.MethodGet, "/runs/"+args[0], nil)
			if err != nil {
				return err
			}
			printEnvelope(env)
			return nil
		},
	}
}

func newRunsTriggerCommand() *cobra.Command {
	var deploymentID, workflowName, inputJSON string

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Create a new run",
		RunE: func(cmd *cobra.Command, args []string) error {
			var input any
			if inputJSON != "" {
				if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
					return fmt.Errorf("parsing --input: %w", err)
				}
			}
			env, err := doRequest(http.MethodPost, "/runs", map[string]any{
				"deploymentId": deploymentID,
				"workflowName": workflowName,
				"input":        input,
			})
			if err != nil {
				return err
			}
			printEnvelope(env)
			return nil
		},
	}
	cmd.Flags().StringVar(&deploymentID, "deployment", "", "Deployment ID (required)")
	cmd.Flags().StringVar(&workflowName, "workflow", "", "Workflow name (required)")
	cmd.Flags().StringVar(&inputJSON, "input", "[]", "JSON array input payload")
	cmd.MarkFlagRequired("deployment")
	cmd.MarkFlagRequired("workflow")
	return cmd
}

func newRunsHistoryCommand() *cobra.Command {
	var order string

	cmd := &cobra.Command{
		Use:   "history [runId]",
		Short: "List a run's event history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/runs/%s/events?order=%s", args[0], order)
			env, err := doRequest(http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			printEnvelope(env)
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", "asc", "asc or desc")
	return cmd
}
