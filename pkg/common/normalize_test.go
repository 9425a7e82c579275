package common

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Jane   Doe \n", "jane doe"},
		{"Acme\r\nCorp", "acme corp"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAssertionSignature(t *testing.T) {
	a := AssertionSignature("works_at", " Acme  Corp ")
	b := AssertionSignature("works_at", "acme corp")
	if a != b {
		t.Fatalf("signatures differ: %q vs %q", a, b)
	}
	if a != "works_at|acme corp" {
		t.Fatalf("unexpected signature %q", a)
	}
	if AssertionSignature("role", "acme corp") == a {
		t.Fatal("different predicates must not collide")
	}
}

func TestTrigramSimilarity(t *testing.T) {
	if got := TrigramSimilarity("Jane Doe", "jane doe"); got != 1 {
		t.Fatalf("identical normalized names: got %v, want 1", got)
	}
	if got := TrigramSimilarity("Jane", ""); got != 0 {
		t.Fatalf("empty name: got %v, want 0", got)
	}
	close := TrigramSimilarity("Jon Smith", "John Smith")
	far := TrigramSimilarity("Jon Smith", "Maria Lopez")
	if close <= far {
		t.Fatalf("expected %v > %v", close, far)
	}
	if close < 0.4 {
		t.Fatalf("near-identical names scored too low: %v", close)
	}
}

func TestEdgeWeight(t *testing.T) {
	if EdgeWeight(0) != 0 {
		t.Fatal("zero evidence must weigh zero")
	}
	prev := 0.0
	for n := 1; n <= 20; n++ {
		w := EdgeWeight(n)
		if w <= prev {
			t.Fatalf("weight not increasing at n=%d: %v <= %v", n, w, prev)
		}
		if w > 1 {
			t.Fatalf("weight above 1 at n=%d: %v", n, w)
		}
		prev = w
	}
}
