package msgcat

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

const defaultFile = "messages.en.yaml"

// Required lists the messages the server and the terminal peer render. A
// catalog missing any of them fails to load.
var Required = []string{
	"session.started", "session.moved", "session.your_turn", "session.waiting", "session.ended",
	"error.not_started", "error.game_over", "error.no_piece", "error.not_your_turn",
	"error.illegal_move", "error.remote_rejected", "error.bad_input", "error.session_not_found",
	"error.too_many_sessions", "error.concurrent_update", "error.bad_request", "error.lobby_gone",
	"error.no_active_game", "error.player_busy", "error.not_participant", "error.internal",
	"peer.connecting", "peer.matched", "peer.disconnected", "peer.help",
	"lobby.created", "lobby.joined", "lobby.full", "lobby.waiting",
}

// Catalog holds parsed message templates keyed by dotted path
// ("error.illegal_move"). It is read-only after New.
type Catalog struct {
	tpls map[string]*template.Template
}

// New loads the embedded English messages, then replaces texts from the YAML
// files in overrideDir. Overrides may only replace known keys, and each key
// may appear in one override file only.
func New(overrideDir string) (*Catalog, error) {
	raw, err := defaultFiles.ReadFile(defaultFile)
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	texts, err := flatten(raw)
	if err != nil {
		return nil, fmt.Errorf("parse embedded messages: %w", err)
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := applyOverrides(texts, overrideDir); err != nil {
			return nil, err
		}
	}

	c := &Catalog{tpls: make(map[string]*template.Template, len(texts))}
	for key, text := range texts {
		t, err := template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", key, err)
		}
		c.tpls[key] = t
	}
	var missing []string
	for _, key := range Required {
		if strings.TrimSpace(texts[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing messages: %s", strings.Join(missing, ", "))
	}
	return c, nil
}

func applyOverrides(texts map[string]string, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read message dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	owner := make(map[string]string)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		flat, err := flatten(b)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for key, text := range flat {
			if _, known := texts[key]; !known {
				return fmt.Errorf("%s: unknown message %q", name, key)
			}
			if prev, dup := owner[key]; dup {
				return fmt.Errorf("message %q set in both %s and %s", key, prev, name)
			}
			owner[key] = name
			texts[key] = text
		}
	}
	return nil
}

// flatten turns nested YAML sections into dotted keys. Leaves must be strings.
func flatten(b []byte) (map[string]string, error) {
	var root map[string]any
	if err := yaml.Unmarshal(b, &root); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	var walk func(prefix string, v any) error
	walk = func(prefix string, v any) error {
		switch v := v.(type) {
		case map[string]any:
			for k, child := range v {
				key := k
				if prefix != "" {
					key = prefix + "." + k
				}
				if err := walk(key, child); err != nil {
					return err
				}
			}
		case string:
			if prefix == "" {
				return fmt.Errorf("top-level string value")
			}
			out[prefix] = v
		case nil:
		default:
			return fmt.Errorf("%s: want text, got %T", prefix, v)
		}
		return nil
	}
	if err := walk("", root); err != nil {
		return nil, err
	}
	return out, nil
}

// Render executes the message key with data. Fields the template names must
// be present in data.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, ok := c.tpls[key]
	if !ok {
		return "", fmt.Errorf("unknown message %q", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text renders key and falls back to the key itself when rendering fails.
func (c *Catalog) Text(key string, data any) string {
	if c == nil {
		return key
	}
	s, err := c.Render(key, data)
	if err != nil {
		return key
	}
	return s
}

// Keys lists every loaded key in sorted order.
func (c *Catalog) Keys() []string {
	out := make([]string, 0, len(c.tpls))
	for k := range c.tpls {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
