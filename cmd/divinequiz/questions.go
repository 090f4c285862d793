package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/divine-quiz/internal/questions"
)

func newQuestionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Maintain the stored question bank",
	}
	cmd.AddCommand(
		newQuestionsExportCmd(a),
		newQuestionsImportCmd(a),
		newQuestionsRestoreCmd(a),
		newQuestionsValidateCmd(a),
	)
	return cmd
}

// withBank loads the config, opens the store and runs fn on the repository.
func (a *app) withBank(cmd *cobra.Command, fn func(repo *questions.Repository) error) error {
	if err := a.load(cmd); err != nil {
		return err
	}
	defer a.logger.Sync()

	svc, err := a.openServices(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()
	return fn(svc.questions)
}

func newQuestionsExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the question bank as an import/export document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBank(cmd, func(repo *questions.Repository) error {
				data, err := repo.Export(cmd.Context())
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", out, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d question(s) to %s\n", len(repo.Questions(cmd.Context())), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newQuestionsImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the question bank with an exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			return a.withBank(cmd, func(repo *questions.Repository) error {
				ok, verrs, err := repo.Import(cmd.Context(), data)
				if err != nil {
					return err
				}
				if len(verrs) > 0 {
					printValidation(cmd.ErrOrStderr(), verrs)
					return errors.New("import rejected")
				}
				if !ok {
					return errors.New(`import rejected: not an export document with a "questions" array`)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d question(s)\n", len(repo.Questions(cmd.Context())))
				return nil
			})
		},
	}
}

func newQuestionsRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Swap the question bank with its backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBank(cmd, func(repo *questions.Repository) error {
				ok, err := repo.Restore(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no backup available")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d question(s) from backup\n", len(repo.Questions(cmd.Context())))
				return nil
			})
		},
	}
}

func newQuestionsValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the stored question bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBank(cmd, func(repo *questions.Repository) error {
				verrs := repo.Validate(cmd.Context())
				if len(verrs) > 0 {
					printValidation(cmd.ErrOrStderr(), verrs)
					return fmt.Errorf("%d problem(s) found", len(verrs))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Question bank is valid")
				return nil
			})
		},
	}
}

func printValidation(w io.Writer, verrs []questions.ValidationError) {
	for _, e := range verrs {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
