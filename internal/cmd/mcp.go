package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inercia/spaceclient/internal/logging"
	"github.com/inercia/spaceclient/internal/mcpserver"
	"github.com/inercia/spaceclient/internal/sse"
)

var (
	mcpMode    string
	mcpPort    int
	mcpProxyTo string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the app endpoints as MCP tools",
	Long: `Run an MCP server whose tools list and call the endpoints of the app.

In stdio mode the protocol uses standard input and output; logs go to
stderr and the --log-file. In http mode the server listens on 127.0.0.1.

With --proxy-to, no app is contacted: the command relays newline-delimited
JSON-RPC from stdin to a Streamable HTTP MCP server, for agents that only
speak stdio.

Examples:
  spaceclient --app gradio/hello_world mcp
  spaceclient --app local mcp --mode http --port 5757
  spaceclient mcp --proxy-to http://127.0.0.1:5757/mcp`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpMode, "mode", string(mcpserver.TransportModeSTDIO), "Transport: stdio or http")
	mcpCmd.Flags().IntVar(&mcpPort, "port", mcpserver.DefaultPort, "Port in http mode (0 picks a free port)")
	mcpCmd.Flags().StringVar(&mcpProxyTo, "proxy-to", "", "URL to proxy MCP requests to (stdio-to-http proxy mode)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if mcpProxyTo != "" {
		return runMCPProxy(ctx, mcpProxyTo, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	mode := mcpserver.TransportMode(mcpMode)
	if mode != mcpserver.TransportModeSTDIO && mode != mcpserver.TransportModeHTTP {
		return fmt.Errorf("unknown mode %q: use stdio or http", mcpMode)
	}

	c, err := connectApp(ctx, stderr(cmd))
	if err != nil {
		return err
	}
	defer c.Close()

	srv, err := mcpserver.NewServer(mcpserver.Config{
		Port:           mcpPort,
		Mode:           mode,
		PredictTimeout: effectiveTimeout(),
	}, c)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP server: %w", err)
	}
	defer srv.Stop()

	if mode == mcpserver.TransportModeHTTP {
		fmt.Fprintf(stderr(cmd), "🔌 MCP server listening on http://127.0.0.1:%d/mcp\n", srv.Port())
		<-ctx.Done()
		return nil
	}
	return srv.Wait()
}

// runMCPProxy reads JSON-RPC messages from in, forwards them to the HTTP
// MCP server and writes the responses to out.
//
// The Streamable HTTP transport keeps session state in the Mcp-Session-Id
// header, which is carried across requests.
func runMCPProxy(ctx context.Context, targetURL string, in io.Reader, out io.Writer) error {
	log := logging.MCP()
	httpClient := &http.Client{}
	reader := bufio.NewReader(in)

	var mcpSessionID string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		trimmed := strings.TrimSpace(line)
		if err == io.EOF && trimmed == "" {
			return nil
		}
		if err != nil && err != io.EOF {
			return fmt.Errorf("read error: %w", err)
		}
		if trimmed == "" {
			continue
		}

		var reqMsg struct {
			ID any `json:"id"`
		}
		_ = json.Unmarshal([]byte(trimmed), &reqMsg)

		resp, newSessionID, ferr := forwardToHTTP(ctx, httpClient, targetURL, trimmed, mcpSessionID)
		if ferr != nil {
			log.Debug("Proxy request failed", "error", ferr)
			writeJSONRPCError(out, reqMsg.ID, -32603, fmt.Sprintf("proxy error: %v", ferr))
		} else {
			if newSessionID != "" {
				mcpSessionID = newSessionID
			}
			// Notifications have no response.
			if len(resp) > 0 {
				_, _ = out.Write(resp)
				if resp[len(resp)-1] != '\n' {
					_, _ = out.Write([]byte("\n"))
				}
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}

// forwardToHTTP posts one JSON-RPC message. It returns the response body,
// the session id sent back by the server, and any error.
func forwardToHTTP(ctx context.Context, httpClient *http.Client, targetURL, jsonBody, sessionID string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewBufferString(jsonBody))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	newSessionID := resp.Header.Get("Mcp-Session-Id")

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, newSessionID, fmt.Errorf("http error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode == http.StatusAccepted {
		return nil, newSessionID, nil
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		// One JSON-RPC message per line
		body, err := sse.ReadAll(resp.Body)
		return body, newSessionID, err
	}
	body, err := io.ReadAll(resp.Body)
	return body, newSessionID, err
}

func writeJSONRPCError(w io.Writer, id any, code int, message string) {
	data, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
	_, _ = w.Write(append(data, '\n'))
}
