package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"qwenlink/internal/tools"
)

// NewToolCmd creates the tool command.
func NewToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Inspect and run tools",
		Long:  `List the tools offered to the model, view their schemas, and run them locally.`,
	}

	cmd.AddCommand(newToolListCmd())
	cmd.AddCommand(newToolInfoCmd())
	cmd.AddCommand(newToolRunCmd())

	return cmd
}

func newToolListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available tools",
		Long:  `List the built-in tools and the script tools from tools.manifest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := toolCatalog(cmd)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, tools.BuildDefinitions(catalog.List()))
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARAMETERS\tDESCRIPTION")
			for _, fn := range catalog.List() {
				fmt.Fprintf(w, "%s\t%d\t%s\n", tools.QualifiedName(fn.Plugin(), fn.Name()), len(fn.Parameters()), truncate(fn.Description(), 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the tool definitions sent to the model")

	return cmd
}

func newToolInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <tool-name>",
		Short: "Show a tool definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := toolCatalog(cmd)
			if err != nil {
				return err
			}
			fn, ok := catalog.Resolve(args[0])
			if !ok {
				return tools.NewFunctionNotFoundError(args[0])
			}
			return writeJSON(cmd, tools.Definition(fn))
		},
	}
}

func newToolRunCmd() *cobra.Command {
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "run <tool-name>",
		Short: "Run a tool locally",
		Example: `  qwenlink tool run builtin-now --args '{"timezone":"Asia/Shanghai"}'
  qwenlink tool run builtin-count_characters --args '{"text":"通义千问"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := toolCatalog(cmd)
			if err != nil {
				return err
			}
			fn, ok := catalog.Resolve(args[0])
			if !ok {
				return tools.NewFunctionNotFoundError(args[0])
			}

			fnArgs, err := tools.ParseArguments(argsJSON)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			result, err := fn.Invoke(ctx, fnArgs)
			if err != nil {
				return fmt.Errorf("tool %s: %w", args[0], err)
			}
			if s, ok := result.(string); ok {
				fmt.Fprintln(cmd.OutOrStdout(), s)
				return nil
			}
			data, err := json.Marshal(result)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "", "arguments as a JSON object")

	return cmd
}

func toolCatalog(cmd *cobra.Command) (*tools.Catalog, error) {
	cliCtx, err := requireCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return cliCtx.Catalog()
}
