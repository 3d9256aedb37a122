package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strideapp/nudge/internal/config"
)

// NewValidateCommand creates the validate command: checks a config file
// against the embedded CUE schema and/or a preferences file against its
// strict YAML shape, without touching any database.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	var configPath, prefsPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate engine config and preference files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" && prefsPath == "" {
				return NewExitError(ExitCommandError, "nothing to validate: pass --config and/or --prefs")
			}

			if configPath != "" {
				if _, err := config.Load(configPath); err != nil {
					return WrapExitError(ExitFailure, "config invalid", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "config OK: %s\n", configPath)
			}

			if prefsPath != "" {
				if _, err := config.LoadPreferences(prefsPath); err != nil {
					return WrapExitError(ExitFailure, "preferences invalid", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "preferences OK: %s\n", prefsPath)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "engine config file (CUE)")
	cmd.Flags().StringVar(&prefsPath, "prefs", "", "preferences file (YAML)")

	return cmd
}
