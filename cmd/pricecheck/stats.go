package main

import (
	"fmt"

	"github.com/hyperengineering/pricecheck/internal/store"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local store statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List local profiles",
	Long:  `List the profiles that have a local database under ~/.pricecheck/profiles.`,
	Args:  cobra.NoArgs,
	RunE:  runProfiles,
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := client.Stats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	return outputStats(cmd, client.Config().Profile, stats)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	profiles, err := store.ListProfiles(store.DefaultProfileRoot())
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	active, err := store.ResolveProfile(cfgProfile)
	if err != nil {
		return err
	}

	if outputJSON {
		if profiles == nil {
			profiles = []string{}
		}
		return outputAsJSON(cmd, map[string]interface{}{
			"active":   active,
			"profiles": profiles,
		})
	}

	out := cmd.OutOrStdout()
	if len(profiles) == 0 {
		printMuted(out, "No profiles yet. The %q profile is created on first use.", active)
		return nil
	}
	for _, p := range profiles {
		if p == active {
			printSuccess(out, "%s (active)", p)
			continue
		}
		fmt.Fprintf(out, "  %s\n", p)
	}
	return nil
}
