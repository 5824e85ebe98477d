package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"qwenlink/internal/storage"
)

// NewSessionCmd creates the session command.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversation sessions",
		Long:  `List, view, and delete stored conversation sessions.`,
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionDeleteCmd())

	return cmd
}

func newSessionListCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Long:  `List conversation sessions, most recently updated first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sessionStorage(cmd)
			if err != nil {
				return err
			}
			sessions, err := db.ListSessions(limit, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if sessions == nil {
					sessions = []*storage.Session{}
				}
				return writeJSON(cmd, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tMESSAGES\tUPDATED")
			for _, s := range sessions {
				count, err := db.CountMessages(s.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Model, count, s.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of sessions to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show session messages",
		Long:  `Display a session and its messages in order.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sessionStorage(cmd)
			if err != nil {
				return err
			}
			session, err := db.GetSession(args[0])
			if err != nil {
				return sessionError(args[0], err)
			}
			messages, err := db.GetMessages(session.ID, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				if messages == nil {
					messages = []*storage.Message{}
				}
				return writeJSON(cmd, map[string]any{"session": session, "messages": messages})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session: %s\n", session.ID)
			fmt.Fprintf(out, "Model:   %s\n", session.Model)
			fmt.Fprintf(out, "Created: %s\n", session.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Updated: %s\n\n", session.UpdatedAt.Local().Format(time.DateTime))

			for _, m := range messages {
				switch {
				case m.Role == "tool":
					fmt.Fprintf(out, "[tool %s] %s\n", m.Name, m.Content)
				case len(m.ToolCalls) > 0 && m.Content == "":
					fmt.Fprintf(out, "[%s] (tool calls) %s\n", m.Role, string(m.ToolCalls))
				default:
					fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "show only the last N messages")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Long:  `Delete a session and all of its messages.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sessionStorage(cmd)
			if err != nil {
				return err
			}
			if err := db.DeleteSession(args[0]); err != nil {
				return sessionError(args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted\n", args[0])
			return nil
		},
	}
}

func sessionStorage(cmd *cobra.Command) (*storage.DB, error) {
	cliCtx, err := requireCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return cliCtx.GetStorage()
}

func sessionError(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("session not found: %s", id)
	}
	return err
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
