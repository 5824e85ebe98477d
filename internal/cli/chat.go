package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	v1 "qwenlink/api/v1"
	"qwenlink/internal/chat"
)

type chatOptions struct {
	sessionID   string
	model       string
	stream      bool
	tools       bool
	seed        uint64
	temperature float64
}

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with a Qwen model",
		Long: `Send a message to a Qwen chat model and print the reply.

Every turn is stored in the local session database. Pass --session to
continue an earlier conversation; otherwise a new session is created and
its ID is printed.

If no message is given and stdin is a terminal, an interactive chat is
started. Otherwise the message is read from stdin.`,
		Example: `  # Send a single message
  qwenlink chat "1+1 等于几？"

  # Continue a session and stream the reply
  qwenlink chat --session abc123 --stream "接着说"

  # Let the model call the built-in and script tools
  qwenlink chat --tools "现在几点了？"

  # Interactive chat
  qwenlink chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.sessionID, "session", "s", "", "session ID to continue")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model to use (overrides dashscope.chat_model)")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "stream the reply")
	cmd.Flags().BoolVar(&opts.tools, "tools", false, "offer tools to the model and invoke them automatically")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "sampling seed")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", 0, "sampling temperature")

	return cmd
}

func runChat(cmd *cobra.Command, args []string, opts chatOptions) error {
	cliCtx, err := requireCLIContext(cmd)
	if err != nil {
		return err
	}

	svc, err := cliCtx.ChatService()
	if err != nil {
		return err
	}
	db, err := cliCtx.GetStorage()
	if err != nil {
		return err
	}
	catalog, err := cliCtx.Catalog()
	if err != nil {
		return err
	}
	conversations := v1.NewConversations(svc, db, catalog)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	settings := chatSettings(cmd, opts, cliCtx)
	out := cmd.OutOrStdout()

	newSession := opts.sessionID == ""
	if newSession {
		opts.sessionID = uuid.NewString()
	}

	if len(args) == 0 {
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return runInteractiveChat(ctx, cmd, conversations, opts, settings)
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		args = []string{strings.TrimSpace(string(data))}
	}

	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message is empty")
	}

	if err := runTurn(ctx, out, conversations, opts, message, settings); err != nil {
		return err
	}
	if newSession {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n(Session ID: %s)\n", opts.sessionID)
	}
	return nil
}

// chatSettings 只传递用户显式设置的参数
func chatSettings(cmd *cobra.Command, opts chatOptions, cliCtx *CLIContext) chat.Settings {
	ext := map[string]any{}
	if cmd.Flags().Changed("seed") {
		ext["seed"] = opts.seed
	}
	if cmd.Flags().Changed("temperature") {
		ext["temperature"] = opts.temperature
	}
	if opts.tools {
		ext["tool_policy"] = cliCtx.ToolPolicy()
	}
	return chat.Settings{ModelID: opts.model, Extension: ext}
}

func runTurn(ctx context.Context, out io.Writer, conversations *v1.Conversations, opts chatOptions, message string, settings chat.Settings) error {
	if !opts.stream {
		reply, err := conversations.Send(ctx, opts.sessionID, opts.model, message, settings)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply.Content)
		printUsage(out, reply.Metadata)
		return nil
	}

	var meta *chat.Metadata
	for delta, err := range conversations.Stream(ctx, opts.sessionID, opts.model, message, settings) {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprint(out, delta.Content)
		for _, tc := range delta.ToolCalls {
			fmt.Fprintf(out, "\n[tool call] %s(%s)\n", tc.Name, tc.Arguments)
		}
		if delta.Metadata != nil && delta.Metadata.Usage != nil {
			meta = delta.Metadata
		}
	}
	fmt.Fprintln(out)
	printUsage(out, meta)
	return nil
}

func printUsage(out io.Writer, meta *chat.Metadata) {
	if globalFlags.Verbose && meta != nil && meta.Usage != nil {
		fmt.Fprintf(out, "[tokens] input=%d output=%d total=%d\n",
			meta.Usage.InputTokens, meta.Usage.OutputTokens, meta.Usage.TotalTokens)
	}
}

func runInteractiveChat(ctx context.Context, cmd *cobra.Command, conversations *v1.Conversations, opts chatOptions, settings chat.Settings) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s. Type /exit to quit.\n", opts.sessionID)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
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

		if err := runTurn(ctx, out, conversations, opts, line, settings); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
	}
}
