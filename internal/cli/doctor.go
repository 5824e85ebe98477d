package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"qwenlink/internal/chat"
	"qwenlink/internal/gateway/handlers"
)

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local setup",
		Long: `Run diagnostic checks on your qwenlink installation.

This command checks:
- Configuration validity
- DashScope API key presence
- Session database accessibility
- Gateway server status
- With --online, a one-token completion against DashScope`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := requireCLIContext(cmd)
			if err != nil {
				return err
			}
			return runDoctor(cmd, cliCtx, online)
		},
	}

	cmd.Flags().BoolVar(&online, "online", false, "send a one-token request to DashScope")

	return cmd
}

type checkResult struct {
	name    string
	status  string // ok, warning, error
	message string
}

func runDoctor(cmd *cobra.Command, cliCtx *CLIContext, online bool) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "qwenlink doctor")
	fmt.Fprintln(out, "===============")
	fmt.Fprintln(out)

	results := []checkResult{
		checkSystemInfo(),
		checkConfig(cliCtx),
		checkStorage(cliCtx),
		checkGateway(cmd.Context(), cliCtx),
	}
	if online {
		results = append(results, checkDashScope(cmd.Context(), cliCtx))
	}

	hasErrors := false
	hasWarnings := false
	for _, r := range results {
		icon := "✓"
		switch r.status {
		case "warning":
			icon = "!"
			hasWarnings = true
		case "error":
			icon = "✗"
			hasErrors = true
		}
		fmt.Fprintf(out, "%s %s: %s\n", icon, r.name, r.message)
	}

	// Summary
	fmt.Fprintln(out)
	switch {
	case hasErrors:
		return fmt.Errorf("some checks failed")
	case hasWarnings:
		fmt.Fprintln(out, "Some warnings detected. qwenlink should work but may have issues.")
	default:
		fmt.Fprintln(out, "All checks passed.")
	}
	return nil
}

func checkSystemInfo() checkResult {
	return checkResult{
		name:    "System",
		status:  "ok",
		message: fmt.Sprintf("Go %s on %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

func checkConfig(cliCtx *CLIContext) checkResult {
	r := checkResult{name: "Config"}
	if err := cliCtx.Config.EnsureValid(); err != nil {
		r.status, r.message = "error", err.Error()
		return r
	}

	r.status = "ok"
	r.message = fmt.Sprintf("transport %s, chat model %s", cliCtx.Config.DashScope.Transport, cliCtx.Config.DashScope.ChatModel)
	if _, err := os.Stat(cliCtx.ConfigPath); os.IsNotExist(err) {
		r.status = "warning"
		r.message = fmt.Sprintf("%s not found, using defaults and environment (%s)", cliCtx.ConfigPath, r.message)
	}
	return r
}

func checkStorage(cliCtx *CLIContext) checkResult {
	r := checkResult{name: "Storage"}
	db, err := cliCtx.GetStorage()
	if err != nil {
		r.status, r.message = "error", fmt.Sprintf("cannot open %s: %v", cliCtx.StoragePath, err)
		return r
	}
	sessions, err := db.ListSessions(0, 0)
	if err != nil {
		r.status, r.message = "error", err.Error()
		return r
	}
	r.status = "ok"
	r.message = fmt.Sprintf("%s (%d sessions)", db.Path(), len(sessions))
	return r
}

func checkGateway(ctx context.Context, cliCtx *CLIContext) checkResult {
	r := checkResult{name: "Gateway"}
	url := fmt.Sprintf("http://%s:%d/health", cliCtx.Config.Gateway.Host, cliCtx.Config.Gateway.Port)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		r.status, r.message = "error", err.Error()
		return r
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		r.status, r.message = "warning", "not running (start it with: qwenlink serve)"
		return r
	}
	defer resp.Body.Close()

	var health handlers.HealthResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &health); err != nil {
		r.status, r.message = "warning", fmt.Sprintf("unexpected response from %s", url)
		return r
	}
	r.status = "ok"
	if health.Status != "ok" {
		r.status = "warning"
	}
	r.message = fmt.Sprintf("%s, version %s, model %s", health.Status, health.Version, health.Model)
	return r
}

func checkDashScope(ctx context.Context, cliCtx *CLIContext) checkResult {
	r := checkResult{name: "DashScope"}
	svc, err := cliCtx.ChatService()
	if err != nil {
		r.status, r.message = "error", err.Error()
		return r
	}

	start := time.Now()
	replies, err := svc.GetChatMessageContents(ctx, chat.NewHistory(chat.Message{Role: chat.RoleUser, Content: "ping"}),
		chat.Settings{Extension: map[string]any{"max_tokens": 1}}, nil)
	if err != nil {
		r.status, r.message = "error", err.Error()
		return r
	}
	r.status = "ok"
	r.message = fmt.Sprintf("%s answered in %s", svc.ModelID(), time.Since(start).Round(time.Millisecond))
	if meta := replies[0].Metadata; meta != nil && meta.RequestID != "" {
		r.message += " (request " + meta.RequestID + ")"
	}
	return r
}
