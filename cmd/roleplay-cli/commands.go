package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"roleplay-coach-api/internal/application/conversation"
	"roleplay-coach-api/internal/domain/entity"
)

const doneCommand = "/done"

func newStartCmd(opts *globalOptions) *cobra.Command {
	var (
		req  conversation.EnsureRunRequest
		mode string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a conversation with a persona, or resume an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(opts)
			if err != nil {
				return err
			}
			req.Mode = entity.ConversationMode(mode)
			return runStart(cmd.Context(), cmd.OutOrStdout(), app, req)
		},
	}
	cmd.Flags().StringVar(&req.RunID, "run", "", "existing persona run id to resume")
	cmd.Flags().StringVar(&req.PersonaID, "persona", "", "persona id")
	cmd.Flags().StringVar(&req.ScenarioID, "scenario", "", "scenario id (starts a new scenario run)")
	cmd.Flags().StringVar(&req.ScenarioRunID, "scenario-run", "", "existing scenario run id")
	cmd.Flags().StringVar(&mode, "mode", string(entity.ConversationModeMessenger), "conversation mode: messenger or realtime_voice")
	cmd.Flags().IntVar(&req.Difficulty, "difficulty", entity.MinDifficulty, "difficulty level 1-4")
	return cmd
}

func runStart(ctx context.Context, w io.Writer, app *cliApp, req conversation.EnsureRunRequest) error {
	if req.RunID == "" && req.ScenarioRunID != "" && req.PersonaID != "" {
		existing, err := app.runs.FindRun(ctx, req.ScenarioRunID, req.PersonaID)
		if err != nil {
			return err
		}
		if existing != nil {
			req.RunID = existing.ID
		}
	}
	run, err := app.runs.EnsureRun(ctx, req)
	if err != nil {
		f := conversation.FailureFor(conversation.OpEnsureRun, err)
		return fmt.Errorf("%s: %w", f.Message, err)
	}
	res, err := app.load(ctx, run.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, renderView(res.View))
	fmt.Fprintf(w, "continue with: roleplay-cli chat %s\n", run.ID)
	return nil
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <run-id>",
		Short: "Chat with the persona; type /done to finish the conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), app, args[0])
		},
	}
}

func runChat(ctx context.Context, in io.Reader, w io.Writer, app *cliApp, runID string) error {
	res, err := app.load(ctx, runID)
	if err != nil {
		return err
	}
	view := res.View
	fmt.Fprintln(w, renderView(view))
	for _, m := range view.InitialMessages {
		fmt.Fprintln(w, renderMessage(view.Persona.Name, m))
	}
	if res.Run.IsCompleted() {
		fmt.Fprintf(w, "conversation already completed, see: roleplay-cli feedback %s\n", runID)
		return nil
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, userStyle.Render("> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case doneCommand:
			return finishChat(ctx, w, app, res)
		}

		ex, err := app.runs.SendMessage(ctx, runID, text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintln(w, errorStyle.Render("message not sent: "+err.Error()))
			continue
		}
		fmt.Fprintln(w, renderMessage(view.Persona.Name, ex.AIMessage))
		if ex.Run.IsCompleted() {
			fmt.Fprintln(w, labelStyle.Render("turn limit reached"))
			return finishChat(ctx, w, app, res)
		}
	}
}

func finishChat(ctx context.Context, w io.Writer, app *cliApp, res *conversation.LoadResult) error {
	run, err := app.runs.Complete(ctx, res.Run.ID)
	if err != nil && !conversation.IsConflict(err) {
		return err
	}
	if run != nil {
		res.Run = run
	}
	switch conversation.CompletionRoute(res.ScenarioRun) {
	case conversation.RouteFeedback:
		fmt.Fprintf(w, "conversation completed, get feedback with: roleplay-cli feedback %s --generate\n", res.Run.ID)
	default:
		fmt.Fprintln(w, "conversation completed, see: roleplay-cli list")
	}
	return nil
}

func newFeedbackCmd(opts *globalOptions) *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "feedback <run-id>",
		Short: "Show the feedback report of a completed conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(opts)
			if err != nil {
				return err
			}
			return runFeedback(cmd.Context(), cmd.OutOrStdout(), app, args[0], generate)
		},
	}
	cmd.Flags().BoolVar(&generate, "generate", false, "generate feedback when none exists")
	return cmd
}

// loadFeedback 获取反馈，generate 为 true 且尚无反馈时触发生成
func loadFeedback(ctx context.Context, app *cliApp, runID string, generate bool) (*conversation.FeedbackCoordinator, error) {
	res, err := app.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	fc := app.coordinator(res)
	_ = fc.Fetch(ctx)
	if generate && fc.State() == conversation.NoFeedback {
		_ = fc.Generate(ctx)
	}
	return fc, nil
}

func runFeedback(ctx context.Context, w io.Writer, app *cliApp, runID string, generate bool) error {
	fc, err := loadFeedback(ctx, app, runID, generate)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, renderFeedback(fc.Snapshot()))
	return nil
}

func newNextCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next <run-id>",
		Short: "Move on to the next persona of the scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(opts)
			if err != nil {
				return err
			}
			return runNext(cmd.Context(), cmd.OutOrStdout(), app, args[0])
		},
	}
}

func runNext(ctx context.Context, w io.Writer, app *cliApp, runID string) error {
	res, err := app.load(ctx, runID)
	if err != nil {
		return err
	}
	step, err := app.coordinator(res).GoToNextPersona(ctx)
	if err != nil {
		f := conversation.FailureFor(conversation.OpNextPersona, err)
		return fmt.Errorf("%s: %w", f.Message, err)
	}
	switch step.Kind {
	case conversation.NoNextPersona:
		fmt.Fprintln(w, "this was the last persona of the scenario")
	case conversation.NextExisting:
		fmt.Fprintf(w, "resuming conversation with %s: roleplay-cli chat %s\n", step.Run.PersonaName, step.Run.ID)
	case conversation.NextCreated:
		fmt.Fprintf(w, "started conversation with %s: roleplay-cli chat %s\n", step.Run.PersonaName, step.Run.ID)
	}
	return nil
}

func newReportCmd(opts *globalOptions) *cobra.Command {
	var (
		output  string
		printIt bool
	)
	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Download the feedback report as HTML, or open it for printing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(opts)
			if err != nil {
				return err
			}
			fc, err := loadFeedback(cmd.Context(), app, args[0], false)
			if err != nil {
				return err
			}
			if printIt {
				return fc.PrintReport(cmd.Context(), browserOpener{})
			}
			return writeReport(cmd.OutOrStdout(), fc, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default feedback-<run-id>.html)")
	cmd.Flags().BoolVar(&printIt, "print", false, "open the report in the browser for printing")
	return cmd
}

func writeReport(w io.Writer, fc *conversation.FeedbackCoordinator, output string) error {
	if output == "" {
		output = fc.ReportFilename()
	}
	if output == "-" {
		return fc.DownloadReport(w)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := fc.DownloadReport(f); err != nil {
		_ = f.Close()
		_ = os.Remove(output)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "report saved to %s\n", output)
	return nil
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(opts)
			if err != nil {
				return err
			}
			items, err := app.runs.ListActive(cmd.Context())
			if err != nil {
				return err
			}
			return writeConversationTable(cmd.OutOrStdout(), items)
		},
	}
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep refreshing the active conversation list until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), app)
		},
	}
}

func runWatch(ctx context.Context, w, errW io.Writer, app *cliApp) error {
	poller := conversation.NewActiveConversationsPoller(app.runs, app.pollInterval(),
		func(items []conversation.ConversationSummary) {
			fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("active conversations (%d)", len(items))))
			_ = writeConversationTable(w, items)
		},
		conversation.WithPollErrorHandler(func(err error) {
			fmt.Fprintln(errW, errorStyle.Render("refresh failed: "+err.Error()))
		}),
	)
	if err := poller.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	poller.Stop()
	return nil
}

func newCloseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close <run-id>",
		Short: "Close a conversation and remove it from the active list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(opts)
			if err != nil {
				return err
			}
			if err := app.runs.Close(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "closed %s\n", args[0])
			return nil
		},
	}
}
