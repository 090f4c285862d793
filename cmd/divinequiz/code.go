package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/divine-quiz/internal/divinecode"
)

func newCodeCmd() *cobra.Command {
	var (
		birth    divinecode.BirthDate
		color    string
		favorite int
	)
	cmd := &cobra.Command{
		Use:     "code",
		Short:   "Compute a divine code",
		Example: "  divinequiz code --day 15 --month 6 --year 1990 --color blue --favorite 7",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := divinecode.ParseColor(color)
			if err != nil {
				return err
			}
			if err := divinecode.ValidateInputs(birth, c, favorite, time.Now()); err != nil {
				return err
			}
			code := divinecode.ComputeCode(birth, c, favorite)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Code:    %s\n", code)
			fmt.Fprintf(out, "Meaning: %s\n", divinecode.CodeMeaning(code))
			fmt.Fprintf(out, "Rarity:  %d%%\n", divinecode.Rarity(code))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&birth.Day, "day", 0, "birth day (1-31)")
	f.IntVar(&birth.Month, "month", 0, "birth month (1-12)")
	f.IntVar(&birth.Year, "year", 0, "birth year")
	f.StringVar(&color, "color", "", "selected color")
	f.IntVar(&favorite, "favorite", 0, "favorite number (1-9)")
	for _, name := range []string{"day", "month", "year", "color", "favorite"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
