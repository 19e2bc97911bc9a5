package main

import (
	"github.com/aretw0/diagram"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of diagramd",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("diagramd version %s\n", diagram.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
