package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"healthmon-agent/internal/agent/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and instance information as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(version.Get(cfg))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
