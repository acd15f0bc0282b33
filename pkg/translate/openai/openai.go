// Package openai implements translate.Provider using the OpenAI API.
//
// Translation runs in two steps: the utterance is transcribed with a Whisper
// model, then a chat completion determines which conversation language was
// spoken and translates the transcript into the other one.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/interloq/interloq/pkg/translate"
)

// Compile-time assertion that Provider satisfies the translate interface.
var _ translate.Provider = (*Provider)(nil)

const (
	defaultChatModel    = "gpt-4o-mini"
	defaultPremiumModel = "gpt-4o"
)

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	chatModel    string
	premiumModel string
	timeout      time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithChatModel sets the chat model used for the translation step.
func WithChatModel(model string) Option {
	return func(c *config) { c.chatModel = model }
}

// WithPremiumModel sets the chat model used when a request carries the
// premium flag.
func WithPremiumModel(model string) Option {
	return func(c *config) { c.premiumModel = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements translate.Provider using Whisper plus a chat model.
type Provider struct {
	client       oai.Client
	chatModel    string
	premiumModel string
}

// New constructs an OpenAI translation provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{
		chatModel:    defaultChatModel,
		premiumModel: defaultPremiumModel,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{
		client:       client,
		chatModel:    cfg.chatModel,
		premiumModel: cfg.premiumModel,
	}, nil
}

// Name implements translate.Provider.
func (p *Provider) Name() string { return "openai" }

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	if len(req.Audio) == 0 {
		return translate.Result{}, translate.NewError(translate.CodeInvalidRequest, "empty audio", nil)
	}

	transcript, err := p.transcribe(ctx, req)
	if err != nil {
		return translate.Result{}, err
	}

	return p.translateTranscript(ctx, req, transcript)
}

// transcribe runs the Whisper step and returns the raw transcript.
func (p *Provider) transcribe(ctx context.Context, req translate.Request) (string, error) {
	resp, err := p.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		Model: oai.AudioModelWhisper1,
		File:  oai.File(bytes.NewReader(req.Audio), "utterance.wav", req.MIME),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", translate.NewError(translate.CodeUnavailable, "transcription", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", translate.NewError(translate.CodeAudioQuality, "no speech recognized in audio", nil)
	}
	return text, nil
}

// chatResponse is the JSON shape the chat prompt instructs the model to emit.
type chatResponse struct {
	RecognizedLanguage string `json:"recognized_language"`
	TranslatedText     string `json:"translated_text"`
	TranslatedLanguage string `json:"translated_language"`
}

// translateTranscript runs the chat step on a Whisper transcript.
func (p *Provider) translateTranscript(ctx context.Context, req translate.Request, transcript string) (translate.Result, error) {
	model := p.chatModel
	if req.Premium && p.premiumModel != "" {
		model = p.premiumModel
	}

	system := fmt.Sprintf(`You are a live interpreter between %[1]s and %[2]s.
The user message is a transcript spoken in either %[1]s or %[2]s.
Determine which of the two languages it is and translate it into the other one.
Respond with a single JSON object with exactly these keys:
{"recognized_language": "%[1]s or %[2]s", "translated_text": "...", "translated_language": "%[1]s or %[2]s"}`,
		req.SourceLang, req.TargetLang)

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(transcript),
		},
		Temperature: param.NewOpt(0.2),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return translate.Result{}, ctx.Err()
		}
		return translate.Result{}, translate.NewError(translate.CodeUnavailable, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return translate.Result{}, translate.NewError(translate.CodeInternal, "empty choices in response", nil)
	}

	var cr chatResponse
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Message.Content)), &cr); err != nil {
		return translate.Result{}, translate.NewError(translate.CodeInternal, "decode chat response", err)
	}

	return translate.Result{
		RecognizedText: transcript,
		RecognizedLang: cr.RecognizedLanguage,
		TranslatedText: cr.TranslatedText,
		TranslatedLang: cr.TranslatedLanguage,
	}, nil
}

// extractJSON strips surrounding prose or code fences from a model reply.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
