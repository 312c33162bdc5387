package naming

import "testing"

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"User", "user"},
		{"BlogPost", "blog_post"},
		{"blogPost", "blog_post"},
		{"HTTPServer", "http_server"},
		{"userID", "user_id"},
		{"already_snake", "already_snake"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToSnakeCase(tt.input); got != tt.expected {
				t.Errorf("ToSnakeCase(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTableName(t *testing.T) {
	n := Default()

	tests := []struct {
		model    string
		expected string
	}{
		{"User", "users"},
		{"Post", "posts"},
		{"Comment", "comments"},
		{"BlogPost", "blog_posts"},
		{"Person", "people"},
		{"Category", "categories"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := n.TableName(tt.model); got != tt.expected {
				t.Errorf("TableName(%q) = %q, want %q", tt.model, got, tt.expected)
			}
		})
	}
}

func TestTableNameWithOverrides(t *testing.T) {
	cfg := Config{
		PluralOverrides:   map[string]string{"status": "statuses", "person": "persons"},
		SingularOverrides: map[string]string{"persons": "person"},
	}
	n := New(cfg)

	if got := n.TableName("Status"); got != "statuses" {
		t.Errorf("TableName(Status) = %q, want %q", got, "statuses")
	}
	if got := n.TableName("Person"); got != "persons" {
		t.Errorf("TableName(Person) = %q, want %q", got, "persons")
	}
	if got := n.Singularize("persons"); got != "person" {
		t.Errorf("Singularize(persons) = %q, want %q", got, "person")
	}
}

func TestForeignKeyColumn(t *testing.T) {
	n := Default()

	tests := []struct {
		model    string
		expected string
	}{
		{"User", "user_id"},
		{"BlogPost", "blog_post_id"},
		{"Person", "person_id"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := n.ForeignKeyColumn(tt.model); got != tt.expected {
				t.Errorf("ForeignKeyColumn(%q) = %q, want %q", tt.model, got, tt.expected)
			}
		})
	}
}

func TestRelationName(t *testing.T) {
	n := Default()

	tests := []struct {
		fkColumn string
		expected string
	}{
		{"author_id", "author"},
		{"user_id", "user"},
		{"created_by_fk", "created_by"},
		{"parent", "parent"}, // no suffix to strip
	}

	for _, tt := range tests {
		t.Run(tt.fkColumn, func(t *testing.T) {
			if got := n.RelationName(tt.fkColumn); got != tt.expected {
				t.Errorf("RelationName(%q) = %q, want %q", tt.fkColumn, got, tt.expected)
			}
		})
	}
}
