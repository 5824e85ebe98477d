package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewEmbedCmd creates the embed command.
func NewEmbedCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "embed <text>...",
		Short: "Generate embeddings for one or more texts",
		Long:  `Generate one embedding per argument with dashscope.embedding_model.`,
		Example: `  qwenlink embed "风急天高猿啸哀" "渚清沙白鸟飞回"
  qwenlink embed --json "hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}
			gen, err := cliCtx.Embeddings()
			if err != nil {
				return err
			}

			for i, text := range args {
				if n := gen.CountTokens(text); n > gen.MaxTokens() {
					return fmt.Errorf("text #%d has %d tokens, more than the model's %d", i+1, n, gen.MaxTokens())
				}
			}

			vectors, err := gen.GenerateEmbeddings(cmd.Context(), args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				return enc.Encode(map[string]any{"model": gen.ModelID(), "embeddings": vectors})
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tDIM\tHEAD\tTEXT")
			for i, vec := range vectors {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", i, len(vec), head(vec, 3), truncate(args[i], 40))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full vectors as JSON")

	return cmd
}

func head(vec []float32, n int) string {
	if len(vec) < n {
		n = len(vec)
	}
	return fmt.Sprintf("%.4f", vec[:n])
}

// truncate 按字符截断，避免切断多字节字符
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
