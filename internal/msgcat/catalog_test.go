package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedRender(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("session.ended", map[string]any{"Winner": "red", "Reason": "general_captured"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Game over: red wins (general_captured)." {
		t.Fatalf("got %q", got)
	}
	if _, err := c.Render("session.ended", map[string]any{"Winner": "red"}); err == nil {
		t.Fatalf("missing field should be an error")
	}
	if got := c.Text("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("Text fallback = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("error:\n  game_over: \"done\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("error.game_over", nil); got != "done" {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.Text("error.not_your_turn", nil); !strings.Contains(got, "not your turn") {
		t.Fatalf("default lost: %q", got)
	}
}

func TestDuplicateOverrideKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("peer:\n  matched: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestEmbeddedCoversRequired(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	have := make(map[string]bool)
	for _, k := range c.Keys() {
		have[k] = true
	}
	for _, k := range Required {
		if !have[k] {
			t.Fatalf("embedded catalog lacks %s", k)
		}
	}
}

func TestOverrideValidation(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "error:\n  not_a_message: \"x\"\n",
		"blank required": "peer:\n  help: \"  \"\n",
		"bad template":   "session:\n  ended: \"{{.Winner\"\n",
		"non-text leaf":  "lobby:\n  full: 3\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "x.yaml"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := New(dir); err == nil {
			t.Fatalf("%s: expected load error", name)
		}
	}
}
