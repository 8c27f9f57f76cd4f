package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/agenthands/texty/internal/mcptools"
	"github.com/agenthands/texty/internal/seeds"
)

func newSeedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seeds",
		Short: "List the built-in scenario premises",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range seeds.Names() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved scenarios, most recently played first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			games, err := a.Game.ListGames(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "SCENARIO\tTIMESTEP\tLAST PLAYED\tSUMMARY")
			for _, g := range games {
				summary := g.Node.Summary
				if g.Node.IsEnded() {
					summary += " (ended)"
				}
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", g.ScenarioID, g.Node.Timestep, g.LastUpdated.Local().Format("2006-01-02 15:04"), summary)
			}
			return w.Flush()
		},
	}
}

func newHistoryCmd(open opener) *cobra.Command {
	var maxlen int
	cmd := &cobra.Command{
		Use:   "history <scenario-id>",
		Short: "Print the game history of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			node, err := a.Game.Active(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), node, maxlen)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxlen, "maxlen", defaultHistoryMaxLen, "truncate entries longer than this many characters")
	return cmd
}

func newDeleteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <scenario-id>",
		Short: "Delete a scenario and its whole history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			if err := a.Game.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newMCPCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the game as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			return mcptools.New(a.Game, Version).Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
