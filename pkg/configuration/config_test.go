package configuration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitializeCreatesDefaultFile(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "settings.cfg")
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	for _, section := range sectionOrder {
		if !strings.Contains(string(data), "["+section+"]") {
			t.Errorf("default file is missing section %s", section)
		}
	}

	if got := GetString("Calculator", "prompt", "?"); got != ">" {
		t.Errorf("expected prompt '>', got %q", got)
	}
	if got := GetDuration("Network", "pong_timeout", 0); got != 90*time.Second {
		t.Errorf("expected 90s pong timeout, got %v", got)
	}
}

func TestInitializeReadsExistingFile(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "settings.cfg")
	content := `; comment
# another comment
[Calculator]
prompt = calc>
result_marker = ==

[Server]
http_port = 9000
mode=websocket

[Extra]
ratio = 0.5
flag = yes
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	tests := []struct {
		section, key, expected string
	}{
		{"Calculator", "prompt", "calc>"},
		{"Calculator", "result_marker", "=="},
		{"Server", "mode", "websocket"},
		// missing from the file, filled from defaults
		{"Calculator", "error_prefix", "Error : "},
	}
	for _, tt := range tests {
		if got := GetString(tt.section, tt.key, ""); got != tt.expected {
			t.Errorf("%s.%s: expected %q, got %q", tt.section, tt.key, tt.expected, got)
		}
	}

	if got := GetInt("Server", "http_port", 0); got != 9000 {
		t.Errorf("expected port 9000, got %d", got)
	}
	if got := GetFloat("Extra", "ratio", 0); got != 0.5 {
		t.Errorf("expected ratio 0.5, got %v", got)
	}
	// unparsable values fall back to the default
	if got := GetBool("Extra", "flag", true); !got {
		t.Error("expected default for unparsable bool")
	}
	if got := GetInt("Calculator", "prompt", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
}

func TestSetStringAndSave(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "nested", "settings.cfg")
	if err := Initialize(path); err != nil {
		t.Fatal(err)
	}
	SetString("Auth", "password_hash", "$2a$10$abc")
	if err := Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	Reset()
	if err := Initialize(path); err != nil {
		t.Fatal(err)
	}
	if got := GetString("Auth", "password_hash", ""); got != "$2a$10$abc" {
		t.Errorf("saved value not reloaded, got %q", got)
	}

	section := GetSection("Auth")
	section["username"] = "changed"
	if GetString("Auth", "username", "") == "changed" {
		t.Error("GetSection must return a copy")
	}
}

func TestGettersWithoutInitialize(t *testing.T) {
	Reset()
	if got := GetString("Calculator", "prompt", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
	if err := Save(); err == nil {
		t.Error("Save without Initialize should fail")
	}
	if len(GetSection("Calculator")) != 0 {
		t.Error("expected empty section")
	}
}
