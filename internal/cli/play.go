package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agenthands/texty/internal/core"
	"github.com/agenthands/texty/internal/core/model"
	"github.com/agenthands/texty/internal/seeds"
)

const defaultHistoryMaxLen = 400

const helpText = `Available commands:
- /quit: Exit the game
- /undo: Undo the last command
- /resume <text>: Keep playing after the story has ended
- /help: Show this help message
- /history [maxlen]: Show the game's history
- <text>: Interact with the game by one timestep`

func newPlayCmd(open opener) *cobra.Command {
	var (
		seedName string
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "play <scenario-id>",
		Short: "Start or continue a scenario in an interactive session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := seeds.Load(seedName)
			if err != nil {
				return err
			}
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(cmd.Context()))

			r := &repl{
				game:       a.Game,
				scenarioID: args[0],
				in:         bufio.NewScanner(cmd.InOrStdin()),
				out:        cmd.OutOrStdout(),
				verbose:    verbose,
			}
			return r.run(cmd.Context(), seed)
		},
	}
	cmd.Flags().StringVar(&seedName, "seed", "zantar", "premise used when the scenario does not exist yet")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show progress updates while the game thinks")
	return cmd
}

type repl struct {
	game       *core.Game
	scenarioID string
	in         *bufio.Scanner
	out        io.Writer
	verbose    bool
}

func (r *repl) run(ctx context.Context, seed model.TimeNode) error {
	err := r.render(r.game.StartIfNotStarted(ctx, r.scenarioID, seed), "Loaded game. Run '/history' to see the game history")
	if err != nil {
		return err
	}

	for {
		r.printf("> ")
		if !r.in.Scan() {
			return r.in.Err()
		}
		if ctx.Err() != nil {
			r.printf("Exiting...\n")
			return nil
		}
		action := strings.TrimSpace(r.in.Text())

		switch {
		case action == "":
		case action == "/quit":
			return nil
		case action == "/undo":
			if err := r.undo(ctx); err != nil {
				return err
			}
		case action == "/history" || strings.HasPrefix(action, "/history "):
			r.history(ctx, action)
		case action == "/help":
			r.printf("%s\n", helpText)
		case strings.HasPrefix(action, "/resume "):
			r.step(ctx, strings.TrimSpace(strings.TrimPrefix(action, "/resume ")), core.WithResume())
		case strings.HasPrefix(action, "/"):
			r.printf("Unknown command: %s. Type /help for a list of commands\n", action)
		default:
			r.step(ctx, action)
		}
	}
}

// step runs one turn. Game failures are reported and the session goes on.
func (r *repl) step(ctx context.Context, input string, opts ...core.StepOption) {
	err := r.render(r.game.Step(ctx, r.scenarioID, input, opts...), "")
	switch {
	case err == nil:
	case errors.Is(err, core.ErrScenarioEnded):
		r.printf("The story has ended. Use /undo to go back or /resume <text> to keep playing.\n")
	case errors.Is(err, context.Canceled):
		r.printf("Cancelled.\n")
	default:
		r.printf("Error: %v\n", err)
	}
}

func (r *repl) undo(ctx context.Context) error {
	node, ok, err := r.game.Undo(ctx, r.scenarioID)
	if err != nil {
		return err
	}
	if !ok {
		r.printf("Can't go back. No parent node found\n")
		return nil
	}
	r.printf("Loaded %s: %s\n", node.ID, node.Summary)
	return nil
}

func (r *repl) history(ctx context.Context, action string) {
	maxlen := defaultHistoryMaxLen
	if parts := strings.Fields(action); len(parts) > 1 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 {
			r.printf("Usage: /history [maxlen]\n")
			return
		}
		maxlen = n
	}
	node, err := r.game.Active(ctx, r.scenarioID)
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	printHistory(r.out, node, maxlen)
}

// render prints narration as it streams and returns the step's error.
func (r *repl) render(ch <-chan core.Progress, ifEmpty string) error {
	wrote := false
	var final *core.Progress
	for p := range ch {
		switch {
		case p.Final:
			final = &p
		case p.Kind == core.ProgressText:
			r.printf("%s", p.Delta)
			wrote = true
		case r.verbose && p.Kind == core.ProgressStatus:
			if p.Debug != "" {
				r.printf("[%s: %s]\n", p.Status, p.Debug)
			} else {
				r.printf("[%s]\n", p.Status)
			}
		}
	}
	if wrote {
		r.printf("\n")
	}
	if final == nil {
		return context.Canceled
	}
	if final.Err != nil {
		return final.Err
	}
	if !wrote && ifEmpty != "" {
		r.printf("%s\n", ifEmpty)
	}
	return nil
}

func (r *repl) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func printHistory(w io.Writer, node model.TimeNode, maxlen int) {
	_, _ = fmt.Fprintln(w, "## Game history")
	for _, item := range node.PlayerLog() {
		_, _ = fmt.Fprintf(w, "> %s(%s): %s\n", item.Role, item.Type, truncateMiddle(item.Text, maxlen))
	}
}

// truncateMiddle keeps the head and tail of text and elides the middle when
// it is longer than maxlen runes.
func truncateMiddle(text string, maxlen int) string {
	runes := []rune(text)
	if len(runes) <= maxlen {
		return text
	}
	head := max(maxlen/2-5, 0)
	tail := maxlen / 2
	return string(runes[:head]) + " ... " + string(runes[len(runes)-tail:])
}
