package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// per-call limit for a full completion round trip
const upstreamRequestTimeout = 30 * time.Second

type UpstreamRequestError struct {
	Message string
	Err     error
}

func (e *UpstreamRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream request failed: %s", e.Err.Error())
	}
	return e.Message
}

func (e *UpstreamRequestError) Unwrap() error {
	return e.Err
}

// ChatMessage is one (role, content) entry sent upstream.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// SecretAIClient issues chat requests against a resolved hub endpoint. One
// request per call, no retry; a failed call is terminal for that request.
type SecretAIClient struct {
	apiKey string
	client *http.Client
}

func NewSecretAIClient(apiKey string) *SecretAIClient {
	return &SecretAIClient{
		apiKey: strings.TrimSpace(apiKey),
		client: &http.Client{Timeout: upstreamRequestTimeout},
	}
}

// Invoke sends the message sequence to the hub and returns the raw response
// text. messages must hold at least one entry; the first system entry is
// the instruction context.
func (sc *SecretAIClient) Invoke(ctx context.Context, endpoint, modelID string, messages []ChatMessage, temperature float64) (string, error) {
	if len(messages) == 0 {
		return "", &UpstreamRequestError{Message: "at least one message is required"}
	}

	body, err := json.Marshal(chatPayload{
		Model:    modelID,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", &UpstreamRequestError{Err: err}
	}

	if temperature > 0 {
		body, err = sjson.SetBytes(body, "options.temperature", temperature)
		if err != nil {
			return "", &UpstreamRequestError{Err: err}
		}
	}

	url := strings.TrimSuffix(endpoint, "/") + "/api/v1/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &UpstreamRequestError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+sc.apiKey)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return "", &UpstreamRequestError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamRequestError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamRequestError{
			Message: fmt.Sprintf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}

	// chat endpoints respond with message.content; older workers use the
	// generate-style top-level response field
	content := gjson.GetBytes(raw, "message.content")
	if content.Exists() {
		return content.String(), nil
	}
	return gjson.GetBytes(raw, "response").String(), nil
}
