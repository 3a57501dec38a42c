package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bdobrica/Cinematic/internal/cinematic/media"
)

const (
	defaultNLPBase  = "https://api.openai.com/v1"
	defaultNLPModel = "gpt-4o-mini"
	defaultTimeout  = 30 * time.Second
)

// Config configures the OpenAI-compatible classification provider.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini when empty
	// (cost-efficient, sufficient for intent extraction).
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// openAIProvider implements Provider using the OpenAI chat completions API
// with JSON-mode output so the response is always parseable JSON.
type openAIProvider struct {
	cfg    Config
	client *http.Client
}

// New returns a Provider backed by the OpenAI (or compatible) chat API.
// The returned provider is safe for concurrent use.
func New(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNLPBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultNLPModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiFormat struct {
	Type string `json:"type"` // "json_object"
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// intentPayload is the JSON shape the model is instructed to produce.
// It is validated against the intent schema before being trusted.
type intentPayload struct {
	Action     string   `json:"action"`
	Titles     []string `json:"titles,omitempty"`
	MediaKind  string   `json:"media_kind,omitempty"`
	Year       int      `json:"year,omitempty"`
	Confidence float64  `json:"confidence"`
	Reply      string   `json:"reply,omitempty"`
}

// systemPrompt is the instruction set sent as the "system" message.
const systemPrompt = `You are Cinematic, a media-library assistant operating over group chat.

Your only job is to translate the user's message into a structured JSON intent.
You NEVER perform library operations yourself — you only propose them.

RULES (strict — do not deviate):
1. Respond ONLY with valid JSON. No markdown, no code fences, no text outside JSON.
2. Never invent an action; the only actions are add, remove, search, status, unknown.
3. Extract media titles exactly as the user wrote them; do not correct or expand them.
4. If the user names the media type ("the show X", "the film Y"), set media_kind.
5. If the user names a release year ("the 1999 one"), set year.
6. Ignore the sender identity; treat every request identically.
7. If the message is not about the media library, or you cannot tell what is
   wanted, set action to "unknown" and compose a short friendly reply.
8. When the conversation shows a pending question with numbered options and the
   user's message picks one of them, classify the original action with the
   picked title and a high confidence.

JSON schema for your response:
{
  "action":     "add" | "remove" | "search" | "status" | "unknown",
  "titles":     ["<title span as written>", ...],
  "media_kind": "movie" | "show" | "",
  "year":       <release year hint, omit when absent>,
  "confidence": 0.0-1.0,
  "reply":      "<short reply, only for action unknown>"
}`

// Classify sends the user message to the LLM and returns the parsed Intent.
func (p *openAIProvider) Classify(ctx context.Context, req ClassifyRequest) (*Intent, error) {
	messages := []oaiMessage{{Role: "system", Content: systemPrompt}}
	for _, h := range req.RecentContext {
		role := h.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, oaiMessage{Role: role, Content: h.Content})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: req.Message})

	body := oaiRequest{
		Model:          p.cfg.Model,
		Messages:       messages,
		MaxTokens:      256,
		ResponseFormat: &oaiFormat{Type: "json_object"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("nlp: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("nlp: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("%w: decode API response: %v", ErrUnavailable, err)
	}

	// Upstream errors — including rate limiting — are the classifier's
	// concern; the pipeline only ever sees "unavailable".
	if oaiResp.Error != nil {
		return nil, fmt.Errorf("%w: API error (%s): %s", ErrUnavailable, oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned (HTTP %d)", ErrUnavailable, resp.StatusCode)
	}

	return parseIntentJSON([]byte(oaiResp.Choices[0].Message.Content))
}

// parseIntentJSON decodes and schema-validates the model's JSON content,
// then maps it onto an Intent.
func parseIntentJSON(content []byte) (*Intent, error) {
	var doc interface{}
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v (raw content: %.200s)", ErrMalformedOutput, err, content)
	}
	if err := validateIntentPayload(doc); err != nil {
		return nil, err
	}

	var payload intentPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	return &Intent{
		Action:     media.ActionKind(payload.Action),
		Entities:   payload.Titles,
		MediaKind:  media.Kind(payload.MediaKind),
		Year:       payload.Year,
		Confidence: payload.Confidence,
		Reply:      payload.Reply,
	}, nil
}
