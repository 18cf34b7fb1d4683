package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// config init is the bootstrap step and must not require an LLM API key;
// only commands that build the pipeline validate the LLM section.
func TestConfigInitWithoutAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "greenprint.yaml")
	rootCmd.SetArgs([]string{"--config", path, "config", "init"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file was not written: %v", err)
	}
}

func TestRunRequiresValidConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(t.TempDir())

	rootCmd.SetArgs([]string{"--config", "greenprint.yaml", "run", "--industry", "Technology"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected run to fail without an API key")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected api_key error, got: %v", err)
	}
}
