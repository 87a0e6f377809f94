package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// FamilyGenerativeText is the Gemini generateContent family.
const FamilyGenerativeText = "generative-text"

var generativeCompletionPath = mustCompilePath(".candidates[0].content.parts[0].text")

// GenerativeTextAdapter speaks the Gemini generateContent schema. The API key
// travels as the "key" query parameter; the system and user prompts are sent
// as a single text part.
type GenerativeTextAdapter struct{}

type generativeRequest struct {
	Contents         []generativeContent `json:"contents"`
	GenerationConfig generativeGenConfig `json:"generationConfig"`
}

type generativeContent struct {
	Parts []generativePart `json:"parts"`
}

type generativePart struct {
	Text string `json:"text"`
}

type generativeGenConfig struct {
	ResponseMIMEType string `json:"response_mime_type"`
}

func (GenerativeTextAdapter) Family() string { return FamilyGenerativeText }

// BuildURL substitutes {model} in the endpoint and appends the key.
func (GenerativeTextAdapter) BuildURL(d Descriptor, credential string) (string, error) {
	u, err := url.Parse(strings.ReplaceAll(d.Endpoint, "{model}", d.Model))
	if err != nil {
		return "", fmt.Errorf("%s: parse endpoint: %w", d.Name, err)
	}
	q := u.Query()
	q.Set("key", credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (GenerativeTextAdapter) BuildHeaders(_ Descriptor, _ string) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return h
}

func (GenerativeTextAdapter) BuildBody(d Descriptor, systemPrompt, userPrompt string) ([]byte, error) {
	body := generativeRequest{
		Contents: []generativeContent{
			{Parts: []generativePart{{Text: systemPrompt + "\n\n" + userPrompt}}},
		},
		GenerationConfig: generativeGenConfig{ResponseMIMEType: "application/json"},
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", d.Name, err)
	}
	return b, nil
}

func (GenerativeTextAdapter) ExtractCompletion(body any) string {
	return extractString(generativeCompletionPath, body)
}
