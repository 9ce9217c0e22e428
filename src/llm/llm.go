package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Config struct {
	APIKey string
	Model  string
}

var (
	config   *Config
	endpoint = "https://openrouter.ai/api/v1/chat/completions"
	client   = &http.Client{} // per-request deadlines come from the context
)

func Init(cfg *Config) {
	config = cfg
}

// Chat-completions wire format.
type message struct {
	Role    string    `json:"role"`
	Content []content `json:"content"`
}

type content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type apiError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // string or number depending on provider
}

// emptySentinel is what the prompts instruct the model to return when the
// selection contains nothing convertible.
const emptySentinel = "NA"

// Query sends one prompt+image request and returns the model's text verbatim
// (code fences stripped). Exactly one request per call: rate limits and
// transient faults surface as a classified *Error, never a silent retry.
func Query(ctx context.Context, prompt string, imageData []byte) (string, error) {
	if config == nil {
		return "", fmt.Errorf("llm client not initialized")
	}
	if config.APIKey == "" {
		return "", fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return "", fmt.Errorf("model is required")
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)
	request := chatRequest{
		Model: config.Model,
		Messages: []message{
			{
				Role: "user",
				Content: []content{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+config.APIKey)
	req.Header.Set("X-Title", "im2any")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", newError(KindTimeout, err)
		}
		return "", newError(KindNetwork, err)
	}
	defer resp.Body.Close()

	if kind, ok := statusKind(resp.StatusCode); ok {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", newError(kind, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", newError(KindMalformedResponse, err)
	}
	if parsed.Error != nil {
		return "", newError(apiErrorKind(parsed.Error), fmt.Errorf("%s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", newError(KindMalformedResponse, fmt.Errorf("no choices in API response"))
	}

	text := CleanResponse(parsed.Choices[0].Message.Content)
	if text == "" || text == emptySentinel {
		return "", newError(KindEmptyResult, fmt.Errorf("model returned %q", emptySentinel))
	}
	return text, nil
}

func statusKind(code int) (ErrorKind, bool) {
	switch {
	case code == http.StatusOK:
		return "", false
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth, true
	case code == http.StatusTooManyRequests || code == http.StatusPaymentRequired:
		return KindQuota, true
	default:
		return KindNetwork, true
	}
}

func apiErrorKind(e *apiError) ErrorKind {
	switch e.Type {
	case "authentication_error", "invalid_api_key":
		return KindAuth
	case "rate_limit_exceeded", "insufficient_quota":
		return KindQuota
	default:
		return KindMalformedResponse
	}
}

// CleanResponse strips surrounding code fences (```latex ... ```) and
// whitespace; the models wrap output in fences despite the prompts.
func CleanResponse(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if i := strings.Index(text, "\n"); i >= 0 {
			text = text[i+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		if j := strings.LastIndex(text, "```"); j >= 0 {
			text = text[:j]
		}
	}
	return strings.TrimSpace(text)
}

// Ping validates the API key with a minimal authenticated request so a bad
// key fails loudly at startup instead of on the first capture.
func Ping(ctx context.Context) error {
	if config == nil {
		return fmt.Errorf("llm client not initialized")
	}
	if config.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	base := strings.TrimSuffix(endpoint, "/chat/completions")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+config.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return newError(KindNetwork, err)
	}
	defer resp.Body.Close()
	if kind, bad := statusKind(resp.StatusCode); bad {
		return newError(kind, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	return nil
}
