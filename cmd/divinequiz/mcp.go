package main

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	quizserver "github.com/HendryAvila/divine-quiz/internal/server"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the operator tools over MCP (stdio transport)",
		Long: `Serve the operator tools over MCP on stdin/stdout.

Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "divine-quiz": {
        "command": "divinequiz",
        "args": ["mcp"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			defer a.logger.Sync()

			svc, err := a.openServices(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					a.logger.Warn("closing store", "error", err)
				}
			}()

			s, err := quizserver.New(quizserver.Deps{
				Questions: svc.questions,
				Settings:  svc.settings,
				Analytics: svc.analytics,
			})
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			// The stdio server handles its own signals and shutdown.
			return server.ServeStdio(s)
		},
	}
}
