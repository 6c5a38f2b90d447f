package secondme

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const streamDone = "[DONE]"

// ChatRequest is one user turn sent to a proxy's chat session.
type ChatRequest struct {
	AccessToken  string
	SessionID    string
	UserPrompt   string
	SystemPrompt string // omitted from the request when empty
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	SessionID    string        `json:"sessionId"`
	Stream       bool          `json:"stream"`
	Messages     []chatMessage `json:"messages"`
	SystemPrompt string        `json:"systemPrompt,omitempty"`
}

// Complete sends the prompt to the chat stream endpoint and returns the
// whole reply.  The event stream is drained to the end and the text
// deltas are concatenated in arrival order.
func (c *Client) Complete(ctx context.Context, r ChatRequest) (string, error) {
	payload, err := json.Marshal(chatBody{
		SessionID:    r.SessionID,
		Stream:       true,
		Messages:     []chatMessage{{Role: "user", Content: r.UserPrompt}},
		SystemPrompt: r.SystemPrompt,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/secondme/chat/stream", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+r.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat/stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("chat/stream: %w", upstreamError(resp.StatusCode, body))
	}

	text, err := readEventStream(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat/stream: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// readEventStream parses a text/event-stream body.  Each event's data
// lines are joined with "\n" per the SSE format; comment lines and other
// fields are ignored.
func readEventStream(r io.Reader) (string, error) {
	var (
		full strings.Builder
		data []string
	)
	flush := func() {
		if len(data) == 0 {
			return
		}
		ev := strings.Join(data, "\n")
		data = data[:0]
		if ev == streamDone {
			return
		}
		full.WriteString(chunkText(ev))
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			v := strings.TrimPrefix(line, "data:")
			data = append(data, strings.TrimPrefix(v, " "))
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	flush()
	return full.String(), nil
}
