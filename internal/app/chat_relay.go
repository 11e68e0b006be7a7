package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/ai"
	"github.com/shivam1002modi/language-agnostic-chatbot/internal/model"
)

const (
	defaultChatTimeout = 60 * time.Second

	EmptyRichReplyText = "I received a response, but it was empty."
	NoReplyText        = "Sorry, I didn't get a specific response."
)

type InferenceClient interface {
	Send(ctx context.Context, sender, message string) ([]ai.WebhookMessage, error)
}

// ChatRelay forwards one chat turn to the inference service and normalizes
// the reply into units the browser can render directly.
type ChatRelay struct {
	client  InferenceClient
	timeout time.Duration
}

type ChatInput struct {
	Sender  string
	Message string
}

func NewChatRelay(client InferenceClient, timeout time.Duration) *ChatRelay {
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	return &ChatRelay{client: client, timeout: timeout}
}

func (r *ChatRelay) Timeout() time.Duration {
	return r.timeout
}

func (r *ChatRelay) Relay(ctx context.Context, input ChatInput) ([]model.ReplyUnit, error) {
	if strings.TrimSpace(input.Sender) == "" {
		return nil, fmt.Errorf("%w: sender is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	messages, err := r.client.Send(callCtx, input.Sender, input.Message)
	if err != nil {
		return nil, classifyUpstreamError(ctx, callCtx, err)
	}
	return NormalizeReplies(messages), nil
}

// NormalizeReplies flattens webhook messages into reply units. It never
// returns an empty slice.
func NormalizeReplies(messages []ai.WebhookMessage) []model.ReplyUnit {
	units := make([]model.ReplyUnit, 0, len(messages))
	for _, msg := range messages {
		if msg.Text != "" {
			units = append(units, model.ReplyUnit{Text: msg.Text, Sources: []model.Source{}})
		}
		if msg.Custom == nil {
			continue
		}
		sources := msg.Custom.Sources
		if sources == nil {
			sources = []model.Source{}
		}
		switch {
		case msg.Custom.Text != "" && msg.Custom.Text != msg.Text:
			units = append(units, model.ReplyUnit{Text: msg.Custom.Text, Sources: sources})
		case msg.Custom.Text == "" && len(sources) > 0:
			units = append(units, model.ReplyUnit{Text: EmptyRichReplyText, Sources: sources})
		case msg.Custom.Text != "" && len(sources) > 0 && len(units) > 0:
			// Same text as the plain part: attach the citations to that unit.
			units[len(units)-1].Sources = sources
		}
	}
	if len(units) == 0 {
		units = append(units, model.ReplyUnit{Text: NoReplyText, Sources: []model.Source{}})
	}
	return units
}
