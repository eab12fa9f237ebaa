package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/configuration"
)

// writeConfig creates a settings file that keeps logs and history in a temp dir
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.cfg")
	content := "[Debug]\nlog_file = " + filepath.Join(dir, "retrocalc.log") + "\n" +
		"[History]\ndatabase = " + filepath.Join(dir, "history.db") + "\n" + extra
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	configuration.Reset()
	t.Cleanup(configuration.Reset)
	return path
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("terminal lost") }

func TestRunConsole(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		code   int
		stdout string
		stderr string
	}{
		{"quit", "let a = 5;\na * 2;\nquit;\n", 0, ">=5\n>=10\n>\n", ""},
		{"end of input", "5*{2+(3-2)}/8;", 0, ">=1.875\n>\n", ""},
		{"statement error is not fatal", "1/0;\npi;\n", 0, ">>=3.1415926535\n>\n", "Error : divide by zero\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeConfig(t, "")
			var stdout, stderr bytes.Buffer
			code := run([]string{"-config", cfg}, strings.NewReader(tt.input), &stdout, &stderr)
			if code != tt.code {
				t.Errorf("expected exit code %d, got %d", tt.code, code)
			}
			if stdout.String() != tt.stdout {
				t.Errorf("stdout: got %q, want %q", stdout.String(), tt.stdout)
			}
			if stderr.String() != tt.stderr {
				t.Errorf("stderr: got %q, want %q", stderr.String(), tt.stderr)
			}
		})
	}
}

func TestRunConsoleFatal(t *testing.T) {
	cfg := writeConfig(t, "")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfg}, brokenReader{}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stdout.String(), "Enter ~ to exit.") {
		t.Errorf("missing exit prompt in %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "terminal lost") {
		t.Errorf("missing diagnostic in %q", stderr.String())
	}
}

func TestRunConsoleWithHistory(t *testing.T) {
	cfg := writeConfig(t, "enabled = true\n")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg}, strings.NewReader("2+2;\n"), &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d (%s)", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(cfg), "history.db")); err != nil {
		t.Errorf("history database not created: %v", err)
	}
}

func TestRunHashPassword(t *testing.T) {
	cfg := writeConfig(t, "")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg, "hash-password", "hunter2"}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	hash := strings.TrimSpace(stdout.String())
	if !auth.CheckPassword(hash, "hunter2") {
		t.Errorf("printed hash %q does not match the password", hash)
	}

	configuration.Reset()
	if code := run([]string{"-config", cfg, "hash-password"}, nil, &stdout, &stderr); code != 1 {
		t.Errorf("missing password: expected exit code 1, got %d", code)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	cfg := writeConfig(t, "")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg, "frobnicate"}, nil, &stdout, &stderr); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "usage:") {
		t.Errorf("expected usage, got %q", stderr.String())
	}
}

func TestRunServeRejectsBadTLS(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, "[Server]\nhttp_port = 0\n[TLS]\nenable_tls = true\n"+
		"cert_file = "+filepath.Join(dir, "missing.crt")+"\nkey_file = "+filepath.Join(dir, "missing.key")+"\n")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg, "serve"}, nil, &stdout, &stderr); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "TLS") {
		t.Errorf("expected TLS diagnostic, got %q", stderr.String())
	}
}
