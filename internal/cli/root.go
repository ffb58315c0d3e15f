// Package cli implements the relayctl command tree.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chat-relay/internal/client"
)

const version = "0.1.0"

var (
	botStyle   = color.New(color.FgCyan, color.Bold)
	userStyle  = color.New(color.FgGreen, color.Bold)
	errorStyle = color.New(color.FgRed)
	dimStyle   = color.New(color.Faint)
)

type options struct {
	server  string
	timeout time.Duration
}

// NewRootCommand builds the relayctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "relayctl",
		Short:   "Talk to the chat relay from a terminal",
		Version: version,
		Long: `relayctl sends messages to the chat relay and inspects the per-bot
transcripts it keeps in memory.`,
		Example: `  # List bots
  $ relayctl bots

  # One-shot message
  $ relayctl chat --bot claude "Explain goroutines in one sentence"

  # Interactive session
  $ relayctl chat --bot gpt-4

  # Show a transcript
  $ relayctl history --bot gpt-4`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	defaultServer := os.Getenv("RELAY_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:5000"
	}
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", defaultServer, "relay server URL (env RELAY_SERVER)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")

	root.AddCommand(newBotsCommand(opts))
	root.AddCommand(newChatCommand(opts))
	root.AddCommand(newHistoryCommand(opts))

	return root
}

// Execute runs relayctl with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *options) client() (*client.Client, error) {
	c, err := client.New(o.server, o.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}
