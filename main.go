// main.go
package main

import (
	"fmt"
	"os"

	"nfstraffic/config"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Attach to nfsd and show live per-file traffic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, configPath, kernelSource)
		},
	}

	rootCmd := &cobra.Command{
		Use:   "nfstraffic",
		Short: "Per-file, per-user, per-client NFS server traffic",
		Long: `nfstraffic counts NFSv4 READ and WRITE operations on the server,
keyed by inode, user and client address, and names the files involved.

Without a subcommand it behaves like "watch".`,
		Version:      version,
		SilenceUsage: true,
		RunE:         watchCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	config.RegisterFlags(rootCmd.PersistentFlags())

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Feed the probe with a synthetic NFS workload",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, configPath, simulatedSource)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nfstraffic %s\n", version)
		},
	}

	rootCmd.AddCommand(watchCmd, simulateCmd, versionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("nfstraffic {{.Version}}\n")
	return rootCmd
}
