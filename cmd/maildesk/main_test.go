package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "run", "status", "extract", "config"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv("MAILDESK_CONFIG", "/etc/maildesk/env.yaml")

	if got := configPath("/tmp/flag.yaml"); got != "/tmp/flag.yaml" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := configPath(""); got != "/etc/maildesk/env.yaml" {
		t.Fatalf("env should apply without flag, got %q", got)
	}

	t.Setenv("MAILDESK_CONFIG", "")
	if got := configPath(""); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}

func TestExtractCmdParsesStdin(t *testing.T) {
	cmd := buildExtractCmd()
	cmd.SetIn(strings.NewReader("Kundin Anna Schmidt bittet um Rückruf unter 030 1234567."))
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
}

func TestConfigValidateCmd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maildesk.yaml")
	data := "server:\n  port: 9090\nprovider:\n  name: openai\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := buildConfigCmd()
	cmd.SetArgs([]string{"validate", "--config", path})
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "is valid") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}
