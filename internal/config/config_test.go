// ABOUTME: Tests for configuration loading
// ABOUTME: Covers env expansion, duration parsing, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":9090"
database:
  path: /tmp/chat.db
auth:
  jwt_secret: super-secret
  token_ttl: 12h
openai:
  api_key: sk-test
  model: gpt-4o
  request_timeout: 30s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "/tmp/chat.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("TokenTTL = %v, want 12h", cfg.Auth.TokenTTL)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("Model = %q", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.OpenAI.RequestTimeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/chat.db
auth:
  jwt_secret: super-secret
openai:
  api_key: sk-test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.OpenAI.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.OpenAI.Model, DefaultModel)
	}
	if cfg.Auth.TokenTTL != DefaultTokenTTL {
		t.Errorf("TokenTTL = %v, want %v", cfg.Auth.TokenTTL, DefaultTokenTTL)
	}
	if cfg.OpenAI.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", cfg.OpenAI.RequestTimeout, DefaultRequestTimeout)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")
	t.Setenv("TEST_API_KEY", "sk-from-env")

	path := writeConfig(t, `
database:
  path: /tmp/chat.db
auth:
  jwt_secret: ${TEST_JWT_SECRET}
openai:
  api_key: ${TEST_API_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q, want from-env", cfg.Auth.JWTSecret)
	}
	if cfg.OpenAI.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want sk-from-env", cfg.OpenAI.APIKey)
	}
}

func TestLoad_UnsetEnvVarFailsValidation(t *testing.T) {
	// An unset variable expands to empty, which the required-field check
	// then catches
	path := writeConfig(t, `
database:
  path: /tmp/chat.db
auth:
  jwt_secret: ${DEFINITELY_NOT_SET_ANYWHERE}
openai:
  api_key: sk-test
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for empty jwt_secret")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing database path",
			content: `
auth:
  jwt_secret: s
openai:
  api_key: k
`,
			wantErr: "database.path",
		},
		{
			name: "missing jwt secret",
			content: `
database:
  path: /tmp/chat.db
openai:
  api_key: k
`,
			wantErr: "auth.jwt_secret",
		},
		{
			name: "missing api key",
			content: `
database:
  path: /tmp/chat.db
auth:
  jwt_secret: s
`,
			wantErr: "openai.api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/chat.db
auth:
  jwt_secret: s
  token_ttl: not-a-duration
openai:
  api_key: k
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for bad token_ttl")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
