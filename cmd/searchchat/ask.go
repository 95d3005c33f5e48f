package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/searchchat/internal/service/chat"
)

var showHistory bool

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask one question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, _, r, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}

		svc := chat.NewService(r)
		session, err := svc.CreateSession(ctx)
		if err != nil {
			return err
		}

		reply, err := svc.Ask(ctx, session.ID, strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, reply.Answer)
		if reply.UsedSearch {
			for _, src := range reply.Sources {
				if src.URL != "" {
					fmt.Fprintf(out, "  - %s\n", src.URL)
				}
			}
		}

		if showHistory {
			transcript, err := svc.LoadTranscript(ctx, session.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\n--- conversation ---")
			for _, turn := range transcript {
				fmt.Fprintf(out, "%s: %s\n", turn.Role, turn.Text)
			}
		}

		if reply.Failed {
			return fmt.Errorf("question could not be answered")
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&showHistory, "history", false, "print the conversation after the answer")
}
