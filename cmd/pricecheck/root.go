package main

import (
	"fmt"

	"github.com/hyperengineering/pricecheck"
	"github.com/spf13/cobra"
)

var (
	cfgProfile    string
	cfgDBPath     string
	cfgBackendURL string
	cfgAPIKey     string
	cfgLogLevel   string
	outputJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "pricecheck",
	Short: "Pricecheck - competitor price collection CLI",
	Long: `Pricecheck records competitor shelf prices on a field device.

Products are scanned or created locally, prices are collected offline, and
a sync uploads the collected prices and refreshes the local catalogue from
the backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), renderBannerWithTagline())
		fmt.Fprintln(cmd.OutOrStdout())
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgProfile, "profile", "", "Profile to use (default: $PRICECHECK_PROFILE or \"default\")")
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db-path", "", "Path to local database (overrides profile)")
	rootCmd.PersistentFlags().StringVar(&cfgBackendURL, "backend-url", "", "Base URL of the backend service")
	rootCmd.PersistentFlags().StringVar(&cfgAPIKey, "api-key", "", "API key for backend authentication")
	rootCmd.PersistentFlags().StringVar(&cfgLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	rootCmd.AddGroup(commandGroups...)
	addToGroup(groupCollect, scanCmd, createCmd, collectCmd, discardCmd, pendingCmd)
	addToGroup(groupCatalogue, searchCmd, hierarchyCmd, competitorsCmd)
	addToGroup(groupData, syncCmd, statsCmd, profilesCmd)
}

func addToGroup(id string, cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.GroupID = id
		rootCmd.AddCommand(c)
	}
}

// loadConfig reads the environment and applies flag overrides. Flags win.
func loadConfig() pricecheck.Config {
	cfg := pricecheck.ConfigFromEnv()

	if cfgProfile != "" {
		cfg.Profile = cfgProfile
	}
	if cfgDBPath != "" {
		cfg.LocalPath = cfgDBPath
	}
	if cfgBackendURL != "" {
		cfg.BackendURL = cfgBackendURL
	}
	if cfgAPIKey != "" {
		cfg.APIKey = cfgAPIKey
	}
	if cfgLogLevel != "" {
		cfg.Log.Level = cfgLogLevel
	}
	// CLI output owns stdout; quiet logs unless asked for
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}

	return cfg
}

// openClient opens the client for the configured profile.
func openClient() (*pricecheck.Client, error) {
	client, err := pricecheck.New(loadConfig())
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}
