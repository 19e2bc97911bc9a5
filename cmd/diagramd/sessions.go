package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/diagram/internal/app"
	"github.com/aretw0/diagram/internal/presentation/graph"
	"github.com/aretw0/diagram/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored session snapshots",
	Long:  `List, inspect, and remove the session snapshots kept by the configured store.`,
}

var sessionsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, _, closeStore, err := app.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		ids, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		if len(ids) == 0 {
			cmd.Println("No stored sessions found.")
			return nil
		}
		cmd.Println("Stored Sessions:")
		for _, id := range ids {
			cmd.Println("- " + id)
		}
		return nil
	},
}

var sessionsInspectCmd = &cobra.Command{
	Use:   "inspect <client-id>",
	Short: "Print the snapshot of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, _, closeStore, err := app.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		snapshot, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", args[0], err)
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			data, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(data))
		case "mermaid":
			cmd.Print(graph.GenerateMermaid(snapshot.Model, nil))
		case "markdown":
			out, err := tui.NewRenderer()(tui.SnapshotMarkdown(snapshot))
			if err != nil {
				return err
			}
			cmd.Print(out)
		default:
			return fmt.Errorf("unknown format %q (json, markdown or mermaid)", format)
		}
		return nil
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <client-id>...",
	Short: "Remove one or more stored sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, _, closeStore, err := app.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		failed := 0
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				cmd.PrintErrf("Error removing '%s': %v\n", id, err)
				failed++
				continue
			}
			cmd.Printf("Removed session '%s'\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d session(s) not removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsLsCmd)
	sessionsCmd.AddCommand(sessionsInspectCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)

	sessionsInspectCmd.Flags().StringP("format", "f", "json", "Output format: json, markdown or mermaid")
}
