package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"qwenlink/internal/chat"
	"qwenlink/internal/textgen"
)

// NewCompleteCmd creates the complete command.
func NewCompleteCmd() *cobra.Command {
	var (
		stream      bool
		temperature float64
		topP        float64
		maxTokens   int
		stops       []string
	)

	cmd := &cobra.Command{
		Use:   "complete <prompt>",
		Short: "Complete a prompt with the text model",
		Long: `Send a bare prompt to dashscope.text_model and print the completion.
No session is stored.`,
		Example: `  qwenlink complete "床前明月光，"
  qwenlink complete --stream --max-tokens 200 "Once upon a time"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}
			prompt := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if stream {
				gen, err := cliCtx.TextGenerator()
				if err != nil {
					return err
				}
				if n := gen.CountTokens(prompt); n > gen.MaxTokenTotal() {
					return fmt.Errorf("prompt has %d tokens, more than the model's %d", n, gen.MaxTokenTotal())
				}
				opts := textgen.Options{
					Temperature:     temperature,
					NucleusSampling: topP,
					MaxTokens:       maxTokens,
					StopSequences:   stops,
				}
				for text, err := range gen.Generate(ctx, prompt, opts) {
					if err != nil {
						fmt.Fprintln(out)
						return err
					}
					fmt.Fprint(out, text)
				}
				fmt.Fprintln(out)
				return nil
			}

			svc, err := cliCtx.TextService()
			if err != nil {
				return err
			}
			ext := map[string]any{}
			if temperature != 0 {
				ext["temperature"] = temperature
			}
			if topP != 0 {
				ext["top_p"] = topP
			}
			if maxTokens != 0 {
				ext["max_tokens"] = maxTokens
			}
			if len(stops) > 0 {
				ext["stop"] = stops
			}
			texts, err := svc.GetTextContents(ctx, prompt, chat.Settings{Extension: ext})
			if err != nil {
				return err
			}
			for _, t := range texts {
				fmt.Fprintln(out, t.Text)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "stream the completion")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().Float64Var(&topP, "top-p", 0, "nucleus sampling probability")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "maximum tokens to generate")
	cmd.Flags().StringSliceVar(&stops, "stop", nil, "stop sequence (repeatable)")

	return cmd
}
