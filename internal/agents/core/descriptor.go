package core

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultDescription is shown for agents that describe nothing.
const DefaultDescription = "No description provided"

// DefaultIcon is shown for keys missing from the icon table.
const DefaultIcon = "🤖"

// SourceBuiltin marks descriptors registered through the static manifest.
const SourceBuiltin = "builtin"

var icons = map[string]string{
	"assistant":               "🤖",
	"basic_agent":             "👋",
	"agent_with_instructions": "📋",
	"agent_with_tools":        "🛠️",
	"agent_with_memory":       "🧠",
	"agent_with_reasoning":    "🤔",
	"agent_team":              "👥",
	"finance":                 "💰",
	"finance_agent":           "💰",
	"thinking_finance_agent":  "📈",
	"youtube":                 "🎥",
	"youtube_agent":           "🎥",
	"research":                "🔬",
	"research_agent":          "🔬",
	"movie_recommender":       "🎬",
	"books_recommender":       "📚",
	"travel_agent":            "🌍",
	"travel_team":             "🌍",
	"recipe_creator":          "🍳",
	"translation_agent":       "🌐",
	"study_partner":           "🎓",
	"web":                     "🔎",
	"web_extraction_agent":    "🕸️",
	"shopping_partner":        "🛍️",
	"agno_assist":             "🧩",
	"readme_generator":        "📝",
	"level2":                  "2️⃣",
	"level3":                  "3️⃣",
}

// Icon returns the glyph for key, or DefaultIcon.
func Icon(key string) string {
	if icon, ok := icons[key]; ok {
		return icon
	}
	return DefaultIcon
}

// TitleCase derives a display name from a key: "finance_agent" → "Finance Agent".
// A cases.Caser is stateful, so each call gets its own.
func TitleCase(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Descriptor is a registry entry: an agent plus how to present it.
type Descriptor struct {
	Key         string
	Name        string
	Description string
	Icon        string
	Agent       Agent
	Source      string   // SourceBuiltin or the dotted module path
	Examples    []string // example queries
}

// Describe builds a descriptor for a, falling back to the key-derived name,
// DefaultDescription and DefaultIcon where a says nothing.
func Describe(key string, a Agent, source string, examples []string) Descriptor {
	d := Descriptor{
		Key:         key,
		Icon:        Icon(key),
		Agent:       a,
		Source:      source,
		Examples:    examples,
		Name:        TitleCase(key),
		Description: DefaultDescription,
	}
	if a == nil {
		return d
	}
	if name := strings.TrimSpace(a.Name()); name != "" {
		d.Name = name
	}
	if desc := strings.TrimSpace(a.Description()); desc != "" {
		d.Description = desc
	}
	return d
}
