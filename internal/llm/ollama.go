package llm

import (
	"fmt"
	"log"
	"strings"
)

// NewOllamaClient talks to Ollama through its OpenAI-compatible API under /v1.
func NewOllamaClient(apiKey, model, baseURL string, maxTokens int) *OpenAIClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
	}
	// Ollama ignores the key but the client requires one.
	if apiKey == "" {
		apiKey = "ollama"
	}
	log.Printf("Initializing Ollama via OpenAI-compatible API at %s", baseURL)
	return NewOpenAIClient(apiKey, model, baseURL, maxTokens)
}
