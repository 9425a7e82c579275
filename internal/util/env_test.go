package util

import "testing"

func TestGetEnvString(t *testing.T) {
	if got := GetEnvString("ROLO_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("unset key = %q, want fallback", got)
	}

	t.Setenv("ROLO_TEST_SET", "value")
	if got := GetEnvString("ROLO_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("set key = %q, want value", got)
	}

	t.Setenv("ROLO_TEST_EMPTY", "")
	if got := GetEnvString("ROLO_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Fatalf("empty key = %q, want fallback", got)
	}
}
