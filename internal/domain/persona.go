package domain

// Persona is a configured character profile. Read-only at runtime; loaded
// from static configuration at startup.
type Persona struct {
	Name         string   // lower-case trigger name, e.g. "jack"
	SystemPrompt string   // character description given to the model
	RefMessages  []string // reference corpus, in order
	DisplayName  string   // outbound posting identity
	IconEmoji    string   // outbound posting icon, e.g. ":speech_balloon:"
}
