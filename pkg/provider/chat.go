package provider

import (
	"encoding/json"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// FamilyChatCompletions is the OpenAI-compatible chat-completions family.
const FamilyChatCompletions = "chat-completions"

var chatCompletionPath = mustCompilePath(".choices[0].message.content")

// ChatCompletionsAdapter speaks the OpenAI chat-completions schema, shared by
// OpenAI itself and OpenAI-compatible gateways such as OpenRouter.
type ChatCompletionsAdapter struct{}

func (ChatCompletionsAdapter) Family() string { return FamilyChatCompletions }

func (ChatCompletionsAdapter) BuildURL(d Descriptor, _ string) (string, error) {
	return d.Endpoint, nil
}

func (ChatCompletionsAdapter) BuildHeaders(_ Descriptor, credential string) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+credential)
	return h
}

func (ChatCompletionsAdapter) BuildBody(d Descriptor, systemPrompt, userPrompt string) ([]byte, error) {
	body := openai.ChatCompletionRequest{
		Model: d.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", d.Name, err)
	}
	return b, nil
}

func (ChatCompletionsAdapter) ExtractCompletion(body any) string {
	return extractString(chatCompletionPath, body)
}
