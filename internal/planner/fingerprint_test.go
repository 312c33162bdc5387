package planner

import (
	"regexp"
	"testing"
)

func TestFingerprintStable(t *testing.T) {
	in := Input{
		Filters: map[string]interface{}{"posts___title__ilike": "%go%"},
		Sort:    []string{"-created_at"},
		Load:    map[string]interface{}{"posts": nil},
		Limit:   5,
	}
	first, err := Fingerprint(mustResolve(t, "User", in))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	again, err := Fingerprint(mustResolve(t, "User", in))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if first != again {
		t.Errorf("fingerprint changed between resolves: %q vs %q", first, again)
	}
	if !regexp.MustCompile(`^[0-9a-f]{16}$`).MatchString(first) {
		t.Errorf("fingerprint = %q, want 16 hex chars", first)
	}
}

func TestFingerprintIgnoresArgumentValues(t *testing.T) {
	base := Input{Filters: map[string]interface{}{"title__like": "Go%"}}
	other := Input{Filters: map[string]interface{}{"title__like": "Rust%"}}

	a, err := Fingerprint(mustResolve(t, "Post", base))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := Fingerprint(mustResolve(t, "Post", other))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a != b {
		t.Errorf("same shape should share a fingerprint: %q vs %q", a, b)
	}
}

func TestFingerprintSeparatesShapes(t *testing.T) {
	a, err := Fingerprint(mustResolve(t, "Post", Input{Sort: []string{"title"}}))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := Fingerprint(mustResolve(t, "Post", Input{Sort: []string{"-title"}}))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a == b {
		t.Errorf("different sort direction should change the fingerprint")
	}

	c, err := Fingerprint(mustResolve(t, "Post", Input{
		Sort: []string{"title"},
		Load: map[string]interface{}{"tags": nil},
	}))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a == c {
		t.Errorf("adding a batch should change the fingerprint")
	}
}
