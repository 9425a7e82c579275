package ai

import (
	"testing"
)

func TestUnmarshalFlexible_DocumentVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "valid json",
			input: `{"people":[{"ref":"p1","name":"Jane Doe","identifiers":[],"facts":[]}],"edges":[]}`,
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{people: [{ref: 'p1', name: 'Jane Doe'}], edges: []}`,
		},
		{
			name:  "trailing comma",
			input: `{"people":[{"ref":"p1","name":"Jane Doe"}],"edges":[],}`,
		},
		{
			name:  "missing end bracket",
			input: `{"people":[{"ref":"p1","name":"Jane Doe"}],"edges":[]`,
		},
		{
			name:  "stringified document",
			input: `"{\"people\":[{\"ref\":\"p1\",\"name\":\"Jane Doe\"}],\"edges\":[]}"`,
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n\"people\":[{\"ref\":\"p1\",\"name\":\"Jane Doe\"}],\"edges\":[]}\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got ExtractionDocument
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if len(got.People) != 1 || got.People[0].Name != "Jane Doe" {
				t.Fatalf("unexpected document: %+v", got)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got ExtractionDocument
	if err := UnmarshalFlexible("not json at all {{{]", &got); err == nil {
		t.Fatal("expected error for unrecoverable input")
	}
}

func TestCountAndTruncateTokensAgree(t *testing.T) {
	text := "Met Jane Doe at the railway conference in Oldenburg last Tuesday."

	n, err := CountTokens(text)
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if n <= 0 {
		t.Fatalf("token count = %d, want > 0", n)
	}

	same, err := TruncateTokens(text, n)
	if err != nil {
		t.Fatalf("TruncateTokens() error = %v", err)
	}
	if same != text {
		t.Fatal("truncating at the exact count must not change the text")
	}

	clipped, err := TruncateTokens(text, n-1)
	if err != nil {
		t.Fatalf("TruncateTokens() error = %v", err)
	}
	m, err := CountTokens(clipped)
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if m > n-1 {
		t.Fatalf("clipped text counts %d tokens, want <= %d", m, n-1)
	}
}
