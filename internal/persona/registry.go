package persona

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"personabot/internal/domain"
)

const defaultIconEmoji = ":speech_balloon:"

// personaFile is the on-disk schema for one persona definition.
type personaFile struct {
	Name         string   `yaml:"name"`
	SystemPrompt string   `yaml:"systemPrompt"`
	RefMessages  []string `yaml:"refMessages"`
	DisplayName  string   `yaml:"displayName"`
	IconEmoji    string   `yaml:"iconEmoji"`
}

// Registry holds the enumerated persona set. Read-only after construction.
type Registry struct {
	personas map[string]domain.Persona
	names    []string // sorted, for stable pattern construction
}

// LoadDirectory loads persona definitions from YAML files in dir. Files must
// have a .yaml or .yml extension. A file that cannot be read or parsed is
// skipped with a warning; an empty resulting set is an error since the bot
// would have nothing to trigger on.
func LoadDirectory(dir string, logger *slog.Logger) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read personas dir: %w", err)
	}

	personas := make(map[string]domain.Persona)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read persona file", "path", path, "err", err)
			continue
		}

		var pf personaFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			logger.Warn("cannot parse persona file", "path", path, "err", err)
			continue
		}

		p, err := normalize(pf, strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			logger.Warn("invalid persona definition", "path", path, "err", err)
			continue
		}

		logger.Info("loaded persona", "name", p.Name, "path", path)
		personas[p.Name] = p
	}

	if len(personas) == 0 {
		return nil, fmt.Errorf("no personas loaded from %s", dir)
	}
	return newRegistry(personas), nil
}

// NewRegistry builds a registry from already-constructed personas. Used by
// tests and by callers with inline configuration.
func NewRegistry(personas []domain.Persona) (*Registry, error) {
	m := make(map[string]domain.Persona, len(personas))
	for _, p := range personas {
		np, err := normalize(personaFile{
			Name:         p.Name,
			SystemPrompt: p.SystemPrompt,
			RefMessages:  p.RefMessages,
			DisplayName:  p.DisplayName,
			IconEmoji:    p.IconEmoji,
		}, p.Name)
		if err != nil {
			return nil, err
		}
		m[np.Name] = np
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("empty persona set")
	}
	return newRegistry(m), nil
}

func newRegistry(personas map[string]domain.Persona) *Registry {
	names := make([]string, 0, len(personas))
	for name := range personas {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Registry{personas: personas, names: names}
}

func normalize(pf personaFile, fallbackName string) (domain.Persona, error) {
	name := strings.ToLower(strings.TrimSpace(pf.Name))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(fallbackName))
	}
	if name == "" {
		return domain.Persona{}, fmt.Errorf("persona has no name")
	}
	if strings.ContainsAny(name, " \t\n!") {
		return domain.Persona{}, fmt.Errorf("persona name %q contains invalid characters", name)
	}
	if pf.SystemPrompt == "" {
		return domain.Persona{}, fmt.Errorf("persona %s has no system prompt", name)
	}

	display := pf.DisplayName
	if display == "" {
		display = strings.ToUpper(name[:1]) + name[1:]
	}
	icon := pf.IconEmoji
	if icon == "" {
		icon = defaultIconEmoji
	}

	return domain.Persona{
		Name:         name,
		SystemPrompt: pf.SystemPrompt,
		RefMessages:  pf.RefMessages,
		DisplayName:  display,
		IconEmoji:    icon,
	}, nil
}

// Get returns the persona with the given name. A miss is a configuration
// error for the caller to surface.
func (r *Registry) Get(name string) (domain.Persona, error) {
	p, ok := r.personas[strings.ToLower(name)]
	if !ok {
		return domain.Persona{}, fmt.Errorf("unknown persona: %s", name)
	}
	return p, nil
}

// Names returns the persona names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// IsPersonaUsername reports whether a declared bot username matches any
// persona's display identity. Such messages are the bot's own output and must
// never reach trigger extraction.
func (r *Registry) IsPersonaUsername(username string) bool {
	if username == "" {
		return false
	}
	for _, p := range r.personas {
		if strings.EqualFold(username, p.DisplayName) || strings.EqualFold(username, p.Name) {
			return true
		}
	}
	return false
}
