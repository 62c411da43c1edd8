package util

import "testing"

func TestHideAPIKey(t *testing.T) {
	cases := map[string]string{
		"sk-or-v1-abcdef123456": "sk-o...3456",
		"abcdefg":               "ab...fg",
		"abc":                   "a...c",
		"ab":                    "ab",
	}
	for in, want := range cases {
		if got := HideAPIKey(in); got != want {
			t.Fatalf("HideAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	got := MaskSensitiveQuery("session_id=s1&access_token=abcdefghijkl&limit=5")
	want := "session_id=s1&access_token=abcd...ijkl&limit=5"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if MaskSensitiveQuery("limit=5") != "limit=5" {
		t.Fatalf("expected untouched query")
	}
	if MaskSensitiveQuery("") != "" {
		t.Fatalf("expected empty query")
	}
}
