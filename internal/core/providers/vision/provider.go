package vision

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"

	"photoscore-server/internal/domain/critique"
	"photoscore-server/internal/platform/config"
	"photoscore-server/internal/platform/errors"
	"photoscore-server/internal/platform/logging"
)

// Provider calls the upstream multimodal endpoint. The gemini type speaks the
// generateContent REST wire format directly; the openai type goes through the
// chat completions client with a data-URL image part.
type Provider struct {
	config *config.ModelConfig
	logger *logging.Logger

	httpClient   *http.Client
	openaiClient *openai.Client
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

// geminiErrorEnvelope carries the machine-readable status of a failed call,
// e.g. "NOT_FOUND" when the requested model does not exist.
type geminiErrorEnvelope struct {
	Error struct {
		Status string `json:"status"`
	} `json:"error"`
}

func NewProvider(cfg *config.ModelConfig, logger *logging.Logger) *Provider {
	return &Provider{
		config:     cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Initialize validates the configuration and builds the typed client. A
// missing API key is not fatal here: the server still boots and reports the
// configuration error per request.
func (p *Provider) Initialize() error {
	if p.config.APIKey == "" {
		p.logger.WarnTag("MODEL", "no API key configured, analysis requests will be rejected")
	}

	switch strings.ToLower(p.config.Provider) {
	case "gemini":
		if p.config.BaseURL == "" {
			return errors.New(errors.KindConfig, "vision.init", "gemini base URL is required")
		}

	case "openai":
		clientConfig := openai.DefaultConfig(p.config.APIKey)
		if p.config.BaseURL != "" {
			clientConfig.BaseURL = p.config.BaseURL
		}
		p.openaiClient = openai.NewClientWithConfig(clientConfig)

	default:
		return errors.New(errors.KindConfig, "vision.init",
			fmt.Sprintf("unsupported model provider: %s", p.config.Provider))
	}

	p.logger.DebugTag("MODEL", "provider initialised: type=%s model=%s fallback=%s",
		p.config.Provider, p.config.ModelName, p.config.FallbackModel)
	return nil
}

func (p *Provider) Cleanup() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// Invoke sends one analysis call to the configured model. When the first call
// fails because the model name is unknown upstream (status "NOT_FOUND") and a
// fallback model is configured, it retries exactly once with the fallback.
// Any other failure, including a failure of the fallback call itself, is
// returned as-is.
func (p *Provider) Invoke(ctx context.Context, prompt, imageBase64, mimeType string) (*critique.Outcome, error) {
	outcome, err := p.InvokeModel(ctx, p.config.ModelName, prompt, imageBase64, mimeType)
	if err != nil {
		return nil, err
	}
	if outcome.Succeeded() || p.config.FallbackModel == "" {
		return outcome, nil
	}
	if modelErrorStatus(outcome.Body) != "NOT_FOUND" {
		return outcome, nil
	}

	p.logger.WarnTag("MODEL", "model %s not found upstream, retrying with %s",
		p.config.ModelName, p.config.FallbackModel)
	return p.InvokeModel(ctx, p.config.FallbackModel, prompt, imageBase64, mimeType)
}

// InvokeModel performs a single call against the named model with no fallback.
func (p *Provider) InvokeModel(ctx context.Context, model, prompt, imageBase64, mimeType string) (*critique.Outcome, error) {
	switch strings.ToLower(p.config.Provider) {
	case "gemini":
		return p.invokeGemini(ctx, model, prompt, imageBase64, mimeType)
	case "openai":
		return p.invokeOpenAI(ctx, model, prompt, imageBase64, mimeType)
	default:
		return nil, errors.New(errors.KindConfig, "vision.invoke",
			fmt.Sprintf("unsupported model provider: %s", p.config.Provider))
	}
}

func (p *Provider) invokeGemini(ctx context.Context, model, prompt, imageBase64, mimeType string) (*critique.Outcome, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{MimeType: mimeType, Data: imageBase64}},
			},
		}},
		SafetySettings: []geminiSafetySetting{
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
			{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
			{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      p.config.Temperature,
			TopP:             p.config.TopP,
			MaxOutputTokens:  p.config.MaxOutputTokens,
			ResponseMimeType: "application/json",
		},
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.KindUpstream, "vision.gemini", "marshal request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(p.config.BaseURL, "/"), model, p.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.KindUpstream, "vision.gemini", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindUpstream, "vision.gemini", "call model endpoint", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.KindUpstream, "vision.gemini", "read model response", err)
	}

	if resp.StatusCode != http.StatusOK {
		p.logger.WarnTag("MODEL", "gemini call failed: model=%s status=%d", model, resp.StatusCode)
	}
	return &critique.Outcome{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func (p *Provider) invokeOpenAI(ctx context.Context, model, prompt, imageBase64, mimeType string) (*critique.Outcome, error) {
	if p.openaiClient == nil {
		return nil, errors.New(errors.KindConfig, "vision.openai", "provider not initialised")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	resp, err := p.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mimeType, imageBase64),
				}},
			},
		}},
		Temperature: float32(p.config.Temperature),
		TopP:        float32(p.config.TopP),
		MaxTokens:   p.config.MaxOutputTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if stderrors.As(err, &apiErr) {
			p.logger.WarnTag("MODEL", "openai call failed: model=%s status=%d", model, apiErr.HTTPStatusCode)
			status := "UNKNOWN"
			if apiErr.HTTPStatusCode == http.StatusNotFound {
				status = "NOT_FOUND"
			}
			body := fmt.Sprintf(`{"error":{"status":%q,"message":%q}}`, status, apiErr.Message)
			return &critique.Outcome{StatusCode: apiErr.HTTPStatusCode, Body: []byte(body)}, nil
		}
		return nil, errors.Wrap(errors.KindUpstream, "vision.openai", "call chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return &critique.Outcome{StatusCode: http.StatusOK, Body: []byte("{}")}, nil
	}
	return &critique.Outcome{
		StatusCode: http.StatusOK,
		Body:       []byte("{}"),
		Text:       resp.Choices[0].Message.Content,
	}, nil
}

func modelErrorStatus(body []byte) string {
	var envelope geminiErrorEnvelope
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Error.Status
}
