package main

import (
	"fmt"

	"github.com/spf13/cobra"

	quizserver "github.com/HendryAvila/divine-quiz/internal/server"
	"github.com/HendryAvila/divine-quiz/internal/updater"
)

func newVersionCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "divinequiz v%s\n", quizserver.Version)
			if !check {
				return nil
			}

			result, err := updater.NewChecker().Check(cmd.Context(), quizserver.Version)
			if err != nil {
				return fmt.Errorf("checking for updates: %w", err)
			}
			if result.UpdateAvailable {
				fmt.Fprintf(out, "Update available: v%s → v%s\n  Release: %s\n",
					result.CurrentVersion, result.LatestVersion, result.ReleaseURL)
			} else {
				fmt.Fprintln(out, "Already at the latest version")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "look for a newer release on GitHub")
	return cmd
}
