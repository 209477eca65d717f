package strategy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/miradorstack/churn-triage/internal/utils"
)

// Completer sends a prompt to a text-generation model and returns its text output.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// ResponsesClient calls an OpenAI Responses-compatible endpoint.
type ResponsesClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewResponsesClient constructs a client for baseURL (e.g. https://api.openai.com).
func NewResponsesClient(baseURL, apiKey string, timeout time.Duration) *ResponsesClient {
	return &ResponsesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type responsesRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type responsesReply struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// text returns output_text, falling back to the first content text in output.
func (r responsesReply) text() string {
	if strings.TrimSpace(r.OutputText) != "" {
		return r.OutputText
	}
	for _, item := range r.Output {
		for _, c := range item.Content {
			if strings.TrimSpace(c.Text) != "" {
				return c.Text
			}
		}
	}
	return ""
}

// Complete implements Completer.
func (c *ResponsesClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", utils.External("strategy.Complete", "generator api key is not configured", nil)
	}
	endpoint := c.resolvePath("/v1/responses")
	if endpoint == "" {
		return "", utils.External("strategy.Complete", "generator base url is not configured", nil)
	}

	var reply responsesReply
	if err := c.postJSON(ctx, endpoint, responsesRequest{Model: model, Input: prompt}, &reply); err != nil {
		return "", utils.External("strategy.Complete", "call generator", err)
	}
	text := reply.text()
	if text == "" {
		return "", utils.External("strategy.Complete", "generator returned no text", nil)
	}
	return text, nil
}

func (c *ResponsesClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *ResponsesClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("generator returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
