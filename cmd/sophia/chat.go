package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-sophia/pkg/evaluation"
	"github.com/teslashibe/go-sophia/pkg/orchestrator"
)

// turner is the part of the orchestrator the chat loop uses.
type turner interface {
	ProcessText(ctx context.Context, sessionID, text string, opts orchestrator.TurnOptions) (*orchestrator.Result, error)
	ForceEvaluate(ctx context.Context, id string) (*evaluation.Report, bool)
}

func newChatCmd() *cobra.Command {
	var (
		message   string
		sessionID string
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Sophia in the terminal",
		Long: "Runs typed turns through the full pipeline. Type /eval to evaluate the\n" +
			"conversation so far and exit or quit to leave.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			c := chat{
				t:       a.orch,
				session: sessionID,
				out:     cmd.OutOrStdout(),
				errOut:  cmd.ErrOrStderr(),
				verbose: verbose,
			}
			if message != "" {
				return c.turn(cmd.Context(), message)
			}
			return c.repl(cmd.Context(), cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to send")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (random when empty)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print emotions, fallbacks and latency")
	return cmd
}

type chat struct {
	t       turner
	session string
	out     io.Writer
	errOut  io.Writer
	verbose bool
}

func (c chat) repl(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(c.out, "sophia chat, session %s (type 'exit' to quit)\n", c.session)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/eval":
			c.evaluate(ctx)
			continue
		}
		if err := c.turn(ctx, input); err != nil {
			fmt.Fprintf(c.errOut, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (c chat) turn(ctx context.Context, text string) error {
	res, err := c.t.ProcessText(ctx, c.session, text, orchestrator.TurnOptions{})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, res.Reply)
	if c.verbose {
		fmt.Fprintf(c.out, "  intent=%s user=%s assistant=%s tier=%s\n",
			res.Intent, res.UserEmotion.Label, res.AssistantEmotion.Label, res.ReplyTier)
		if len(res.Fallbacks) > 0 {
			fmt.Fprintf(c.out, "  fallbacks=%s\n", strings.Join(res.Fallbacks, ","))
		}
		fmt.Fprintf(c.out, "  %s\n", res.Timings.FormatLatency())
	}
	return nil
}

func (c chat) evaluate(ctx context.Context) {
	r, ok := c.t.ForceEvaluate(ctx, c.session)
	if !ok {
		fmt.Fprintln(c.out, "No active conversation to evaluate.")
		return
	}
	s := r.Summary()
	quality := "n/a"
	if s.QualityAverage != nil {
		quality = fmt.Sprintf("%.2f", *s.QualityAverage)
	}
	fmt.Fprintf(c.out, "messages=%d quality=%s confidence=%s drift=%v\n",
		s.TotalMessages, quality, s.ConfidenceChange, s.DriftAlert)
}
