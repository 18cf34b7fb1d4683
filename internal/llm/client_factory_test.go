package llm

import (
	"context"
	"testing"

	"greenprint/internal/config"
)

func TestNewClient_OpenAI(t *testing.T) {
	client, err := NewClient(context.Background(), config.LLMConfig{
		Provider: "openai",
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, ok := client.(*OpenAIClient); !ok {
		t.Errorf("expected *OpenAIClient, got %T", client)
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), config.LLMConfig{
		Provider: "carrier-pigeon",
		APIKey:   "key",
	})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewClient_BadTimeout(t *testing.T) {
	_, err := NewClient(context.Background(), config.LLMConfig{
		Provider: "openai",
		APIKey:   "key",
		Timeout:  "three eons",
	})
	if err == nil {
		t.Fatal("expected error for unparsable timeout")
	}
}

func TestGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	if err == nil {
		t.Fatal("expected error without API key")
	}
}
