package language

import "testing"

func TestNormalizeTag(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		" EN_us ": "en-us",
		"zh-Hans": "zh-hans",
		"en--US":  "en-us",
		"en_123":  "",
		"   ":     "",
	}
	for input, want := range cases {
		if got := NormalizeTag(input); got != want {
			t.Fatalf("NormalizeTag(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	if got := NormalizeCode(" EN-us "); got != "en" {
		t.Fatalf("unexpected normalized code: %q", got)
	}
	if got := NormalizeCode("zh"); got != "zh" {
		t.Fatalf("unexpected normalized code: %q", got)
	}
	if got := NormalizeCode(" "); got != "" {
		t.Fatalf("expected empty code for blank input, got %q", got)
	}
}

func TestResolvePrefersDeclared(t *testing.T) {
	t.Parallel()

	if got := Resolve("de-AT", "This sentence is clearly written in English."); got != "de" {
		t.Fatalf("expected declared language, got %q", got)
	}
}

func TestResolveShortTextIsUndetermined(t *testing.T) {
	t.Parallel()

	if got := Resolve("", "ok"); got != Undetermined {
		t.Fatalf("expected %q for short text, got %q", Undetermined, got)
	}
	if got := Resolve("und", "!!"); got != Undetermined {
		t.Fatalf("expected %q, got %q", Undetermined, got)
	}
}
