package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, base string) string {
	t.Helper()

	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
prefs_path = %q

[worker]
settle_delay_ms = 5
dial_timeout_ms = 50

[logging]
level = "error"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "prefs.json"),
	)

	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIDocumentAndAssetCommands(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)

	if _, _, err := runCLI(t, configPath, "docs", "add", "doc-1", "Poster"); err != nil {
		t.Fatalf("docs add: %v", err)
	}
	if _, _, err := runCLI(t, configPath, "docs", "add-layer", "doc-1", "l1", "Icon", "--kind", "raster", "--export-enabled"); err != nil {
		t.Fatalf("docs add-layer: %v", err)
	}

	out, _, err := runCLI(t, configPath, "docs", "layers", "doc-1")
	if err != nil {
		t.Fatalf("docs layers: %v", err)
	}
	if !strings.Contains(out, "Icon") || !strings.Contains(out, "raster") {
		t.Fatalf("unexpected layer listing: %q", out)
	}

	if _, _, err := runCLI(t, configPath, "assets", "add", "doc-1", "--layer", "l1", "--scale", "2", "--format", "png"); err != nil {
		t.Fatalf("assets add: %v", err)
	}

	out, _, err = runCLI(t, configPath, "assets", "list", "doc-1", "--layer", "l1")
	if err != nil {
		t.Fatalf("assets list: %v", err)
	}
	if !strings.Contains(out, "@2x") || !strings.Contains(out, "queued") {
		t.Fatalf("unexpected asset listing: %q", out)
	}

	out, _, err = runCLI(t, configPath, "assets", "update", "doc-1", "0", "--layer", "l1", "--scale", "3")
	if err != nil {
		t.Fatalf("assets update: %v", err)
	}
	if !strings.Contains(out, "3x") {
		t.Fatalf("unexpected update output: %q", out)
	}

	out, _, err = runCLI(t, configPath, "assets", "health")
	if err != nil {
		t.Fatalf("assets health: %v", err)
	}
	if !strings.Contains(out, "Assets:   1") {
		t.Fatalf("unexpected health output: %q", out)
	}

	if _, _, err := runCLI(t, configPath, "assets", "delete", "doc-1", "0", "--layer", "l1"); err != nil {
		t.Fatalf("assets delete: %v", err)
	}
	out, _, err = runCLI(t, configPath, "assets", "list", "doc-1", "--layer", "l1")
	if err != nil {
		t.Fatalf("assets list after delete: %v", err)
	}
	if !strings.Contains(out, "No assets configured") {
		t.Fatalf("expected empty listing, got %q", out)
	}
}

func TestCLIExportSkipsWithoutWorker(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)

	if _, _, err := runCLI(t, configPath, "docs", "add", "doc-1", "Poster"); err != nil {
		t.Fatalf("docs add: %v", err)
	}
	if _, _, err := runCLI(t, configPath, "docs", "add-layer", "doc-1", "l1", "Icon", "--export-enabled"); err != nil {
		t.Fatalf("docs add-layer: %v", err)
	}

	out, _, err := runCLI(t, configPath, "export", "layers", "doc-1", "--dest", base)
	if err != nil {
		t.Fatalf("export layers: %v", err)
	}
	if !strings.Contains(out, "worker unavailable") {
		t.Fatalf("expected worker-unavailable skip, got %q", out)
	}
}

func TestCLIWorkerStatusWithoutWorker(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)

	out, _, err := runCLI(t, configPath, "worker", "status")
	if err != nil {
		t.Fatalf("worker status: %v", err)
	}
	if !strings.Contains(out, "ERROR") {
		t.Fatalf("expected handshake error reported, got %q", out)
	}
}

func TestParsePrefixAssignments(t *testing.T) {
	prefixes, err := parsePrefixAssignments([]string{"l1=App-", "l2=Web "})
	if err != nil {
		t.Fatalf("parsePrefixAssignments: %v", err)
	}
	if prefixes["l1"] != "App-" || prefixes["l2"] != "Web " {
		t.Fatalf("unexpected prefixes: %v", prefixes)
	}

	if _, err := parsePrefixAssignments([]string{"no-separator"}); err == nil {
		t.Fatal("expected error for missing separator")
	}
	if _, err := parsePrefixAssignments([]string{"=prefix"}); err == nil {
		t.Fatal("expected error for empty layer id")
	}
}
