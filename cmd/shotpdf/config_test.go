package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := runRoot(t, nil, "config", "init", "-c", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := runRoot(t, nil, "config", "init", "-c", path); err == nil {
		t.Fatalf("expected init to refuse overwriting")
	}
	out, err := runRoot(t, nil, "config", "show", "-c", path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"config_version: 1", "paper: a4", "document_name: screenshot.pdf"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, nil, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, " ") {
		t.Fatalf("unexpected version output %q", out)
	}
	out, err = runRoot(t, nil, "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	if !strings.Contains(out, `"module"`) {
		t.Fatalf("expected json output, got %q", out)
	}
}
