// Package llm is the free-form chit-chat fallback. It is consulted only
// when the deterministic pipeline classified nothing and the FAQ dataset had
// no answer; it never touches order state or resolution decisions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrUnavailable means no usable reply can be produced; callers degrade to
// the generic help menu.
var ErrUnavailable = errors.New("llm: unavailable")

// Fallback produces a conversational reply for messages nothing else could
// handle.
type Fallback interface {
	Reply(ctx context.Context, message string) (string, error)
	Close() error
}

// Disabled is the no-op implementation used when no API key is configured.
type Disabled struct{}

func (Disabled) Reply(context.Context, string) (string, error) { return "", ErrUnavailable }
func (Disabled) Close() error                                  { return nil }

const replyInstruction = "You are a friendly customer-support assistant for an online shopping service. " +
	"Reply briefly and politely to the following message. Do not make up order details, " +
	"order statuses, refunds or other account specifics; for anything order-related, " +
	"suggest the customer share their order number.\n\nCustomer: "

// Gemini answers through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the Gemini-backed fallback.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Reply asks the model for a short conversational answer. Callers are
// expected to bound ctx with a timeout.
func (g *Gemini) Reply(ctx context.Context, message string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(replyInstruction+message), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrUnavailable
	}
	return text, nil
}

// Close satisfies Fallback. The genai client holds no resources that need
// explicit release.
func (g *Gemini) Close() error { return nil }
