package internal

import (
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
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestBoardConfig_StartMonthFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Board.StartMonth = "January 2025"
	if err := cfg.Validate(); err == nil {
		t.Fatal("malformed start_month should fail validation")
	}

	cfg.Board.StartMonth = "2025-03"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid start_month rejected: %v", err)
	}
	start, err := cfg.Board.StartMonthTime()
	if err != nil {
		t.Fatal(err)
	}
	if start.Month() != 3 || start.Year() != 2025 {
		t.Errorf("start = %v", start)
	}
}

func TestAnnotationsConfig_Backend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Annotations.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail validation")
	}

	cfg.Annotations.Backend = BackendSQLite
	cfg.Annotations.Path = "./dagaz.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sqlite backend rejected: %v", err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
