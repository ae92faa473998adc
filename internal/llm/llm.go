// Package llm turns scored signals into short prose narratives. A chat model
// is optional: ChatAnalyzer speaks the OpenAI-compatible completions API
// (Mistral, OpenAI, or a local server), and RuleAnalyzer produces a
// deterministic narrative from the same inputs when no model is configured.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/signalhaus/signalhaus/internal/model"
	"github.com/signalhaus/signalhaus/internal/rag"
)

// Analyzer produces a buyer-facing narrative for a detected signal, given
// the retrieval contexts that informed its scoring.
type Analyzer interface {
	Narrative(ctx context.Context, sig model.Signal, contexts []rag.Context) (string, error)
}

// ChatConfig configures an OpenAI-compatible chat endpoint.
type ChatConfig struct {
	BaseURL string // e.g. "https://api.mistral.ai" or "https://api.openai.com"
	APIKey  string
	Model   string // e.g. "mistral-small-latest"
}

// ChatAnalyzer calls a chat completion endpoint. Any failure is returned to
// the caller, who falls back to RuleAnalyzer.
type ChatAnalyzer struct {
	cfg        ChatConfig
	httpClient *http.Client
}

func NewChatAnalyzer(cfg ChatConfig) *ChatAnalyzer {
	return &ChatAnalyzer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

const systemPrompt = "You are a sales intelligence analyst for a surplus-goods trading desk. " +
	"Given a detected market signal and similar historical signals, write a short narrative " +
	"(3-5 sentences) explaining what happened, why it matters for a buyer, and how similar " +
	"situations played out. Plain prose, no headings, no bullet points."

// Narrative asks the chat model for an analysis of the signal.
func (a *ChatAnalyzer) Narrative(ctx context.Context, sig model.Signal, contexts []rag.Context) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(sig, contexts)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	url := strings.TrimSuffix(a.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("llm: unmarshal response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("llm: chat error: %s", result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: unexpected status %d", resp.StatusCode)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("llm: empty completion")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func buildPrompt(sig model.Signal, contexts []rag.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Signal: %s\nType: %s (priority %s)\nConfidence: %.1f, deal potential: %.1f\nSummary: %s\n",
		sig.Title, sig.Type, sig.Priority, sig.Confidence, sig.DealPotential, sig.Summary)
	for _, quote := range sig.Evidence.Quotes {
		fmt.Fprintf(&b, "Evidence: %q\n", quote)
	}
	if len(contexts) > 0 {
		b.WriteString("\nSimilar historical signals:\n")
		for _, c := range contexts {
			outcome := "no outcome yet"
			if c.Outcome != nil {
				outcome = string(*c.Outcome)
			}
			fmt.Fprintf(&b, "- %s (%s, similarity %.2f, %s)\n", c.Title, c.SignalType, c.Similarity, outcome)
		}
	}
	return b.String()
}

// RuleAnalyzer builds the narrative from templates. Deterministic, offline,
// and the permanent fallback when no chat model is configured or a chat
// call fails.
type RuleAnalyzer struct{}

func NewRuleAnalyzer() *RuleAnalyzer {
	return &RuleAnalyzer{}
}

// Narrative assembles the signal's facts and retrieval history into prose.
func (a *RuleAnalyzer) Narrative(_ context.Context, sig model.Signal, contexts []rag.Context) (string, error) {
	var b strings.Builder

	company := sig.CompanyName
	if company == "" {
		company = sig.CompanyID
	}
	fmt.Fprintf(&b, "%s shows a %s signal (%s priority) with confidence %.0f and deal potential %.0f.",
		company, strings.ReplaceAll(string(sig.Type), "_", " "), sig.Priority, sig.Confidence, sig.DealPotential)
	if sig.Summary != "" {
		b.WriteString(" " + sig.Summary)
	}

	won, lost := 0, 0
	for _, c := range contexts {
		if c.Outcome == nil {
			continue
		}
		switch *c.Outcome {
		case model.OutcomeDealWon:
			won++
		case model.OutcomeDealLost:
			lost++
		}
	}
	switch {
	case won > 0 && won >= lost:
		fmt.Fprintf(&b, " %d of %d similar historical signals led to won deals; this pattern has converted before.",
			won, len(contexts))
	case lost > 0:
		fmt.Fprintf(&b, " %d of %d similar historical signals were lost; approach with tighter qualification.",
			lost, len(contexts))
	case len(contexts) > 0:
		fmt.Fprintf(&b, " %d similar signals are on record without outcomes yet.", len(contexts))
	}

	if !sig.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, " The window closes around %s.", sig.ExpiresAt.Format("2 January 2006"))
	}
	return b.String(), nil
}
