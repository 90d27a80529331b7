package cli

import (
	"bufio"
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/orchestrator"
)

func ChatCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the support engine from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, rt.cfg, rt.log)
			if err != nil {
				return err
			}
			defer a.close()
			return chatLoop(ctx, cmd, a.engine)
		},
	}
}

func chatLoop(ctx context.Context, cmd *cobra.Command, engine *orchestrator.Orchestrator) error {
	out := cmd.OutOrStdout()
	conv, welcome, err := engine.StartConversation(ctx, domain.ChannelWebchat)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "assistant> %s\n", welcome)

	conversationID := conv.ID
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		result, err := engine.HandleMessage(ctx, orchestrator.Request{
			ConversationID: conversationID,
			Message:        line,
			Channel:        domain.ChannelWebchat,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		conversationID = result.ConversationID

		fmt.Fprintf(out, "assistant> %s\n", result.Response)
		fmt.Fprintf(out, "  intent=%s confidence=%.2f outcome=%s", result.Intent, result.Confidence, result.Outcome)
		if result.ActionTaken != nil {
			fmt.Fprintf(out, " action=%s", result.ActionTaken.Type)
		}
		if result.ShouldEscalate {
			fmt.Fprintf(out, " escalated=true reason=%q", result.EscalateReason)
		}
		if result.Blocked {
			fmt.Fprint(out, " blocked=true")
		}
		fmt.Fprintln(out)
	}
}
