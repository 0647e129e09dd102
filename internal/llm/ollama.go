// Package llm provides the model backend capabilities: chat generation,
// JSON-constrained multimodal analysis and text embeddings, all served by
// an Ollama instance over HTTP.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/paperdeck/researcher/config"
	"github.com/paperdeck/researcher/pkg/errs"
)

// Message is a single chat turn.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Client is the capability surface consumed by the services. Constructed
// once and injected everywhere; there is no package-level instance.
type Client interface {
	// Chat sends messages to the chat model and returns the reply text.
	Chat(ctx context.Context, messages []Message) (string, error)
	// AnalyzeImage sends prompt plus one image to the vision model,
	// constrained to reply with JSON.
	AnalyzeImage(ctx context.Context, prompt string, img image.Image) (string, error)
	// Embed returns the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Ollama implements Client against the Ollama HTTP API.
type Ollama struct {
	baseURL     string
	chatModel   string
	visionModel string
	embedModel  string
	httpClient  *http.Client
}

// NewOllama creates a client from configuration.
func NewOllama(cfg config.OllamaConfig) *Ollama {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Ollama{
		baseURL:     cfg.BaseURL,
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
		embedModel:  cfg.EmbeddingModel,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   string    `json:"format,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

// Chat implements Client.
func (o *Ollama) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := o.chat(ctx, chatRequest{
		Model:    o.chatModel,
		Messages: messages,
	})
	if err != nil {
		return "", errs.Upstream("chat", err)
	}
	return resp.Message.Content, nil
}

// AnalyzeImage implements Client. The image travels base64-encoded inside
// the message; format "json" tells the model to emit a bare JSON object.
func (o *Ollama) AnalyzeImage(ctx context.Context, prompt string, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	resp, err := o.chat(ctx, chatRequest{
		Model: o.visionModel,
		Messages: []Message{{
			Role:    "user",
			Content: prompt,
			Images:  []string{base64.StdEncoding.EncodeToString(buf.Bytes())},
		}},
		Format: "json",
	})
	if err != nil {
		return "", errs.Upstream("analyze image", err)
	}
	return resp.Message.Content, nil
}

func (o *Ollama) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	req.Stream = false
	var out chatResponse
	if err := o.post(ctx, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", out.Error)
	}
	return &out, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// Embed implements Client.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	if err := o.post(ctx, "/api/embeddings", embedRequest{Model: o.embedModel, Prompt: text}, &out); err != nil {
		return nil, errs.Upstream("embed", err)
	}
	if out.Error != "" {
		return nil, errs.Upstream("embed", fmt.Errorf("ollama error: %s", out.Error))
	}
	if len(out.Embedding) == 0 {
		return nil, errs.Upstream("embed", fmt.Errorf("empty embedding returned"))
	}
	return out.Embedding, nil
}

func (o *Ollama) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
