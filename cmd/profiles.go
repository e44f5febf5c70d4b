package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reflow_oven/internal/hardware/mcu"
	"reflow_oven/internal/reflow"
)

var profilesDefaults bool

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Print the active profile table as YAML",
	Long: `profiles prints the profile table the controller would load, in the
format accepted by profiles_file. Use --defaults to print the built-in
table as a starting point for a custom one.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		table := reflow.DefaultProfiles()
		if !profilesDefaults {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if table, err = reflow.LoadProfiles(cfg.ProfilesFile); err != nil {
				return err
			}
		}
		if err := table.Validate(); err != nil {
			return err
		}
		return reflow.EncodeProfiles(cmd.OutOrStdout(), table)
	},
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports usable by the mcu driver",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ports, err := mcu.Ports()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	profilesCmd.Flags().BoolVar(&profilesDefaults, "defaults", false, "print the built-in profiles")
}
