package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Engine.MaxNGram != 2 || cfg.Engine.FingerprintSize != 50 || cfg.Engine.MemoSize != 3 {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
}

func TestApplicationConfig_LogFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.LogFormat = ""
	if err := cfg.App.Validate(); err != nil {
		t.Fatalf("empty format should default: %v", err)
	}
	if cfg.App.LogFormat != LogFormatJSON {
		t.Errorf("format = %q, want %q", cfg.App.LogFormat, LogFormatJSON)
	}

	cfg.App.LogFormat = "xml"
	if err := cfg.App.Validate(); err == nil {
		t.Error("unknown log format should fail validation")
	}
}

func TestEngineConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  EngineConfig
	}{
		{"zero ngram", EngineConfig{MaxNGram: 0, FingerprintSize: 50, MemoSize: 3}},
		{"huge ngram", EngineConfig{MaxNGram: 9, FingerprintSize: 50, MemoSize: 3}},
		{"zero fingerprint", EngineConfig{MaxNGram: 2, FingerprintSize: 0, MemoSize: 3}},
		{"zero memo", EngineConfig{MaxNGram: 2, FingerprintSize: 50, MemoSize: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCollectionsConfig_InverseFilters(t *testing.T) {
	cfg := CollectionsConfig{InverseFilters: map[string]string{"pinned": "unpinned"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid pair rejected: %v", err)
	}

	cfg.InverseFilters = map[string]string{"same": "same"}
	if err := cfg.Validate(); err == nil {
		t.Error("self-inverse filter should fail")
	}
}

func TestEngineConfig_LoadSimilarity(t *testing.T) {
	cfg := EngineConfig{}
	scores, err := cfg.LoadSimilarity()
	if err != nil || scores != nil {
		t.Fatalf("no file: scores=%v err=%v", scores, err)
	}

	path := filepath.Join(t.TempDir(), "similarity.yaml")
	if err := os.WriteFile(path, []byte("a:\n  b: 0.75\n  c: 0.5\nb:\n  a: 0.75\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.SimilarityPath = path
	scores, err = cfg.LoadSimilarity()
	if err != nil {
		t.Fatalf("LoadSimilarity() error = %v", err)
	}
	if scores["a"]["b"] != 0.75 || scores["a"]["c"] != 0.5 || len(scores["b"]) != 1 {
		t.Errorf("scores = %v", scores)
	}

	if err := os.WriteFile(path, []byte("a: [not, a, map]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.LoadSimilarity(); err == nil {
		t.Error("expected parse error")
	}

	cfg.SimilarityPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.LoadSimilarity(); err == nil {
		t.Error("expected read error")
	}
}
