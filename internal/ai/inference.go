package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
)

const maxWebhookResponse = 8 << 20

// WebhookMessage is one element of the REST webhook reply. Rich answers arrive
// in Custom, plain ones in Text.
type WebhookMessage struct {
	RecipientID string         `json:"recipient_id,omitempty"`
	Text        string         `json:"text,omitempty"`
	Custom      *CustomPayload `json:"custom,omitempty"`
}

type CustomPayload struct {
	Text    string         `json:"text,omitempty"`
	Sources []model.Source `json:"sources,omitempty"`
}

type webhookRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// InferenceClient talks to the conversational service's REST webhook.
type InferenceClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewInferenceClient(endpoint string) (*InferenceClient, error) {
	parsed, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("inference endpoint: %w", err)
	}
	return &InferenceClient{
		endpoint:   parsed,
		httpClient: newHTTPClient(),
	}, nil
}

// Send posts one chat turn. The caller's context bounds the whole exchange.
func (c *InferenceClient) Send(ctx context.Context, sender, message string) ([]WebhookMessage, error) {
	bodyBytes, err := json.Marshal(webhookRequest{Sender: sender, Message: message})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build webhook request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: raw}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponse))
	if err != nil {
		return nil, fmt.Errorf("read webhook response failed: %w", err)
	}

	var messages []WebhookMessage
	if len(bytes.TrimSpace(raw)) == 0 {
		return messages, nil
	}
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, &StatusError{StatusCode: http.StatusBadGateway, Body: raw}
	}
	return messages, nil
}
