package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/sortcheck/models"
)

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("SORTCHECK_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}

	s := server.NewMCPServer(
		"sortcheck",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	validateTool := mcp.NewTool("validate_ordering",
		mcp.WithDescription("Collect the newest entries from the configured listing (Hacker News /newest by default) across as many pages as needed and check that they are sorted newest first. Reports every out-of-order pair."),
		mcp.WithNumber("target_count",
			mcp.Description("Number of entries to collect before auditing (default: 100, max: 1000)"),
		),
	)
	s.AddTool(validateTool, handleValidate(apiURL, 2*time.Second))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiCall sends a request to the sortcheck API and decodes the JSON reply
// into out.
func apiCall(ctx context.Context, client *http.Client, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

// pollRun polls the run endpoint until the run leaves the running state or
// ctx is cancelled.
func pollRun(ctx context.Context, client *http.Client, apiURL, id string, interval time.Duration) (*models.RunStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var st models.RunStatus
			if err := apiCall(ctx, client, http.MethodGet, apiURL+"/api/v1/runs/"+id, nil, &st); err != nil {
				return nil, err
			}
			if st.Status != models.RunStatusRunning {
				return &st, nil
			}
		}
	}
}

func handleValidate(apiURL string, interval time.Duration) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := models.RunRequest{TargetCount: request.GetInt("target_count", models.DefaultTargetCount)}

		var started models.RunResponse
		if err := apiCall(ctx, client, http.MethodPost, apiURL+"/api/v1/runs", req, &started); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run request failed: %v", err)), nil
		}
		if started.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", started.Error.Code, started.Error.Message)), nil
		}
		if started.ID == "" {
			return mcp.NewToolResultError("run creation failed"), nil
		}

		st, err := pollRun(ctx, client, apiURL, started.ID, interval)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling run failed: %v", err)), nil
		}
		if st.Status == models.RunStatusFailed || st.Report == nil {
			msg := "run failed"
			if st.Error != nil {
				msg = fmt.Sprintf("[%s] %s", st.Error.Code, st.Error.Message)
			}
			return mcp.NewToolResultError(msg), nil
		}

		return mcp.NewToolResultText(summarize(st.ID, st.Report)), nil
	}
}

// summarize renders a report for a tool result.
func summarize(id string, r *models.ValidationReport) string {
	var sb strings.Builder
	verdict := "sorted newest first"
	if !r.IsSorted {
		verdict = "NOT sorted newest first"
	}
	fmt.Fprintf(&sb, "Run %s: %d entries across %d pages are %s.\n", id, r.TotalCollected, r.PagesVisited, verdict)
	if r.SourceExhausted {
		sb.WriteString("The listing ran out of pages before the target count was reached.\n")
	}

	if len(r.Violations) > 0 {
		fmt.Fprintf(&sb, "\n%d ordering violations:\n", len(r.Violations))
		for _, v := range r.Violations {
			fmt.Fprintf(&sb, "- position %d: %q (%s) is older than the next entry %q (%s)\n",
				v.Position, v.Current.Title, v.Current.Age, v.Next.Title, v.Next.Age)
		}
	}
	return sb.String()
}
