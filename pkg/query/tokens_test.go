package query

import (
	"reflect"
	"testing"
)

func TestEntityTokens(t *testing.T) {
	cases := []struct {
		query string
		want  []string
	}{
		{
			query: `who do I know at "Acme Corp"`,
			want:  []string{"acme corp", "acme", "corp"},
		},
		{
			query: "people from Initech Labs in Berlin",
			want:  []string{"initech labs", "berlin", "initech", "labs"},
		},
		{
			query: "fundraising intros",
			want:  []string{"fundraising", "intros"},
		},
		{
			query: "who do I know",
			want:  nil,
		},
	}
	for _, c := range cases {
		got := entityTokens(c.query)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("entityTokens(%q) = %v, want %v", c.query, got, c.want)
		}
	}
}
