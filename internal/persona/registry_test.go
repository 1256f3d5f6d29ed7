package persona

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"personabot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	jack := `name: jack
systemPrompt: You are Jack, a cheerful pirate.
refMessages:
  - "Arr, good morning crew!"
  - "The sea waits for no one."
displayName: Jack
iconEmoji: ":pirate_flag:"
`
	if err := os.WriteFile(filepath.Join(dir, "jack.yaml"), []byte(jack), 0o644); err != nil {
		t.Fatal(err)
	}
	// Name and display identity fall back to the file stem.
	brad := "systemPrompt: You are Brad.\n"
	if err := os.WriteFile(filepath.Join(dir, "brad.yml"), []byte(brad), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-YAML files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadDirectory(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	p, err := reg.Get("jack")
	if err != nil {
		t.Fatal(err)
	}
	if p.IconEmoji != ":pirate_flag:" {
		t.Errorf("expected :pirate_flag:, got %s", p.IconEmoji)
	}
	if len(p.RefMessages) != 2 {
		t.Errorf("expected 2 reference messages, got %d", len(p.RefMessages))
	}

	p, err = reg.Get("brad")
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "Brad" {
		t.Errorf("expected default display name Brad, got %s", p.DisplayName)
	}
	if p.IconEmoji != defaultIconEmoji {
		t.Errorf("expected default icon, got %s", p.IconEmoji)
	}
}

func TestLoadDirectory_SkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(":\t:not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	// No system prompt.
	if err := os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("name: empty\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ok.yaml"), []byte("name: ok\nsystemPrompt: fine\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadDirectory(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.Names(); len(got) != 1 || got[0] != "ok" {
		t.Errorf("expected only the valid persona, got %v", got)
	}
}

func TestLoadDirectory_EmptyIsError(t *testing.T) {
	if _, err := LoadDirectory(t.TempDir(), testLogger()); err == nil {
		t.Error("empty persona directory should be an error")
	}
}

func TestGet_UnknownPersona(t *testing.T) {
	reg, err := NewRegistry([]domain.Persona{{Name: "jack", SystemPrompt: "p"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get("nobody"); err == nil {
		t.Error("unknown persona should error")
	}
}

func TestIsPersonaUsername(t *testing.T) {
	reg, err := NewRegistry([]domain.Persona{{Name: "jack", SystemPrompt: "p", DisplayName: "Captain Jack"}})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		username string
		want     bool
	}{
		{"Captain Jack", true},
		{"captain jack", true},
		{"jack", true},
		{"someone else", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := reg.IsPersonaUsername(tc.username); got != tc.want {
			t.Errorf("IsPersonaUsername(%q) = %v, want %v", tc.username, got, tc.want)
		}
	}
}
