package extract

import (
	"errors"
	"reflect"
	"testing"
)

func TestClean(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare object passes through",
			in:   `{"focus":"x"}`,
			want: `{"focus":"x"}`,
		},
		{
			name: "strips json fence",
			in:   "```json\n{\"focus\":\"x\"}\n```",
			want: `{"focus":"x"}`,
		},
		{
			name: "strips anonymous fence",
			in:   "```\n[1,2]\n```",
			want: `[1,2]`,
		},
		{
			name: "slices object out of prose",
			in:   "Here is the plan you asked for:\n{\"focus\":\"wars\"}\nLet me know!",
			want: `{"focus":"wars"}`,
		},
		{
			name: "slices array out of prose",
			in:   "Queries: [\"a\",\"b\"] as requested.",
			want: `["a","b"]`,
		},
		{
			name: "object before array wins",
			in:   `{"queries":["a","b"]}`,
			want: `{"queries":["a","b"]}`,
		},
		{
			name: "no json markers returns trimmed input",
			in:   "  I could not produce a plan.  ",
			want: "I could not produce a plan.",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(tt.in); got != tt.want {
				t.Fatalf("Clean() got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObjectRoundTrip(t *testing.T) {
	t.Parallel()
	in := "```json\n{\"satisfied\": true, \"unanswered\": [\"q1\"]}\n```"
	got, err := Object(in)
	if err != nil {
		t.Fatalf("Object() error = %v", err)
	}
	want := map[string]interface{}{
		"satisfied":  true,
		"unanswered": []interface{}{"q1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Object() got %#v, want %#v", got, want)
	}
}

func TestObjectNoJSON(t *testing.T) {
	t.Parallel()
	_, err := Object("sorry, I cannot help with that")
	if !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}

func TestStringList(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{
			name: "plain array",
			in:   `["quantum computing 2026","qubit error correction"]`,
			want: []string{"quantum computing 2026", "qubit error correction"},
		},
		{
			name: "fenced array with prose",
			in:   "Sure:\n```json\n[\"a\", \"b\", \"c\"]\n```",
			want: []string{"a", "b", "c"},
		},
		{
			name: "numbers are stringified",
			in:   `["a", 42]`,
			want: []string{"a", "42"},
		},
		{
			name:    "object is not an array",
			in:      `{"queries": ["a"]}`,
			wantErr: true,
		},
		{
			name:    "no json",
			in:      "no queries today",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := StringList(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("StringList() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("StringList() got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntoTyped(t *testing.T) {
	t.Parallel()
	var verdict struct {
		Satisfied  bool     `json:"satisfied"`
		Unanswered []string `json:"unanswered"`
	}
	raw := "The verdict follows.\n{\"satisfied\": false, \"unanswered\": [\"what data\", \"which variables\"]}"
	if err := Into(raw, &verdict); err != nil {
		t.Fatalf("Into() error = %v", err)
	}
	if verdict.Satisfied {
		t.Fatalf("expected satisfied=false")
	}
	if len(verdict.Unanswered) != 2 {
		t.Fatalf("expected 2 unanswered, got %d", len(verdict.Unanswered))
	}
}
