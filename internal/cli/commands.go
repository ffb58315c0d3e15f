package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"chat-relay/internal/client"
	"chat-relay/internal/models"
)

func newBotsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bots",
		Short: "List registered bots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			bots, err := c.Bots(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, bot := range bots {
				status := "ready"
				if !bot.Implemented {
					status = "not implemented"
				}
				botStyle.Fprintf(out, "%-10s", bot.Name)
				dimStyle.Fprintf(out, " %s\n", status)
			}
			return nil
		},
	}
}

func newChatCommand(opts *options) *cobra.Command {
	var bot string

	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Send a message, or start an interactive session when none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			if len(args) > 0 {
				reply, err := c.Chat(cmd.Context(), bot, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			}
			return interactive(cmd, c, bot)
		},
	}
	cmd.Flags().StringVarP(&bot, "bot", "b", "claude", "bot to talk to")
	return cmd
}

// interactive reads one message per line until EOF or "/exit". Failed
// requests are printed and the session continues.
func interactive(cmd *cobra.Command, c *client.Client, bot string) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	dimStyle.Fprintf(out, "Chatting with %s. Type /exit to quit.\n", bot)
	for {
		userStyle.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		reply, err := c.Chat(cmd.Context(), bot, line)
		if err != nil {
			errorStyle.Fprintf(out, "error: %v\n", err)
			continue
		}
		botStyle.Fprintf(out, "%s> ", bot)
		fmt.Fprintln(out, reply)
	}
}

func newHistoryCommand(opts *options) *cobra.Command {
	var bot string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a bot's transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			turns, err := c.History(cmd.Context(), bot)
			if err != nil {
				return err
			}
			printTurns(cmd.OutOrStdout(), turns)
			return nil
		},
	}
	cmd.Flags().StringVarP(&bot, "bot", "b", "", "bot whose transcript to print")
	cmd.MarkFlagRequired("bot")
	return cmd
}

func printTurns(out io.Writer, turns []models.Turn) {
	if len(turns) == 0 {
		dimStyle.Fprintln(out, "(empty)")
		return
	}
	for _, turn := range turns {
		style := botStyle
		if turn.Role == models.RoleUser {
			style = userStyle
		}
		style.Fprintf(out, "%s: ", turn.Role)
		fmt.Fprintln(out, turn.Content)
	}
}
