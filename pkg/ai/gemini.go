package ai

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// Defaults for the Gemini client.
const (
	DefaultModel      = "gemini-2.5-flash"
	DefaultAPIVersion = "v1"
)

// GeminiConfig configures a Gemini Answerer.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // empty for the SDK default
	APIVersion string
	HTTPClient *http.Client
}

// Gemini answers questions with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini returns an Answerer backed by the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating genai client")
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

// Answer implements Answerer. It makes exactly one upstream call.
func (g *Gemini) Answer(ctx context.Context, question string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(Prompt(question), genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", errors.Wrapf(err, "generating content with %s", g.model)
	}
	text, err := candidateText(resp)
	if err != nil {
		return "", err
	}
	return FirstWord(text)
}

// candidateText returns the text of the first part of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.Wrap(ErrNoAnswer, "no candidates")
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0] == nil {
		return "", errors.Wrap(ErrNoAnswer, "first candidate has no content")
	}
	return c.Content.Parts[0].Text, nil
}
