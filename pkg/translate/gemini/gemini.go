// Package gemini implements translate.Provider on top of Google's Gemini API.
//
// One utterance is submitted as an inline audio part alongside a JSON-mode
// prompt. The model decides which of the two conversation languages was
// spoken, transcribes it and translates into the other one.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/interloq/interloq/pkg/translate"
)

// Compile-time assertion that Provider satisfies the translate interface.
var _ translate.Provider = (*Provider)(nil)

const (
	defaultModel = "gemini-2.0-flash"
	premiumModel = "gemini-2.5-pro"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model used for standard requests.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithPremiumModel sets the model used when a request carries the premium
// flag.
func WithPremiumModel(model string) Option {
	return func(p *Provider) { p.premiumModel = model }
}

// Provider implements translate.Provider for the Gemini API.
type Provider struct {
	client       *genai.Client
	model        string
	premiumModel string
}

// New creates a Gemini translation provider with the given API key.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	p := &Provider{
		client:       client,
		model:        defaultModel,
		premiumModel: premiumModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements translate.Provider.
func (p *Provider) Name() string { return "gemini" }

// modelResponse is the JSON shape the prompt instructs the model to emit.
type modelResponse struct {
	RecognizedText     string `json:"recognized_text"`
	RecognizedLanguage string `json:"recognized_language"`
	TranslatedText     string `json:"translated_text"`
	TranslatedLanguage string `json:"translated_language"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	if len(req.Audio) == 0 {
		return translate.Result{}, translate.NewError(translate.CodeInvalidRequest, "empty audio", nil)
	}
	if req.MIME == "" {
		return translate.Result{}, translate.NewError(translate.CodeInvalidRequest, "missing audio MIME type", nil)
	}

	model := p.model
	if req.Premium && p.premiumModel != "" {
		model = p.premiumModel
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Audio, req.MIME),
		genai.NewPartFromText(buildPrompt(req.SourceLang, req.TargetLang)),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		ResponseMIMEType: "application/json",
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return translate.Result{}, ctx.Err()
		}
		return translate.Result{}, translate.NewError(translate.CodeUnavailable, "generate content", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return translate.Result{}, translate.NewError(translate.CodeAudioQuality, "model returned no content for audio", nil)
	}

	var mr modelResponse
	if err := json.Unmarshal([]byte(text), &mr); err != nil {
		return translate.Result{}, translate.NewError(translate.CodeInternal, "decode model response", err)
	}
	if strings.TrimSpace(mr.RecognizedText) == "" {
		// The model answered but could not make out speech.
		return translate.Result{}, translate.NewError(translate.CodeAudioQuality, "no speech recognized in audio", nil)
	}

	return translate.Result{
		RecognizedText: mr.RecognizedText,
		RecognizedLang: mr.RecognizedLanguage,
		TranslatedText: mr.TranslatedText,
		TranslatedLang: mr.TranslatedLanguage,
	}, nil
}

// buildPrompt produces the JSON-mode instruction for one utterance.
func buildPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(`You are a live interpreter between %[1]s and %[2]s.
Listen to the attached audio. It contains one utterance spoken in either %[1]s or %[2]s.
Determine which of the two languages was spoken, transcribe the utterance, then translate it into the other language.
If the audio contains no intelligible speech, return empty strings for every field.
Respond with a single JSON object with exactly these keys:
{"recognized_text": "...", "recognized_language": "%[1]s or %[2]s", "translated_text": "...", "translated_language": "%[1]s or %[2]s"}`,
		sourceLang, targetLang)
}
