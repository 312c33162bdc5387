// Package naming provides centralized naming logic for deriving table and
// column names from model names, including pluralization with custom
// overrides.
package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Config holds naming customization options
type Config struct {
	// PluralOverrides maps singular -> custom plural
	// Example: {"person": "people", "status": "statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular
	// Example: {"people": "person", "data": "datum"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   make(map[string]string),
		SingularOverrides: make(map[string]string),
	}
}

// Namer derives SQL names from model names
type Namer struct {
	config Config
}

// New creates a Namer with the given configuration
func New(cfg Config) *Namer {
	return &Namer{config: cfg}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig())
}

// Pluralize converts a singular word to its plural form.
// Checks custom overrides first, then falls back to the inflection library.
func (n *Namer) Pluralize(word string) string {
	if override, ok := n.config.PluralOverrides[word]; ok {
		return override
	}
	return inflection.Plural(word)
}

// Singularize converts a plural word to its singular form.
// Checks custom overrides first, then falls back to the inflection library.
func (n *Namer) Singularize(word string) string {
	if override, ok := n.config.SingularOverrides[word]; ok {
		return override
	}
	return inflection.Singular(word)
}

// TableName derives the default table name for a model: the pluralized
// snake_case form of the model name.
// Example: "BlogPost" -> "blog_posts"
func (n *Namer) TableName(modelName string) string {
	return n.Pluralize(ToSnakeCase(modelName))
}

// ForeignKeyColumn derives the default foreign key column referencing a model.
// Example: "User" -> "user_id"
func (n *Namer) ForeignKeyColumn(modelName string) string {
	return n.Singularize(ToSnakeCase(modelName)) + "_id"
}

// RelationName derives a relation name from a foreign key column by
// stripping common FK suffixes.
// Example: "author_id" -> "author"
func (n *Namer) RelationName(fkColumn string) string {
	name := fkColumn
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return name
}

// ToSnakeCase converts PascalCase or camelCase to snake_case.
// Acronym runs stay together: "HTTPServer" -> "http_server".
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
