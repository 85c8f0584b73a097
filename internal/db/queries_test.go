package db

import (
	"testing"
	"time"
)

func TestNormalizeVisibility(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":          VisibilityPrivate,
		" private ": VisibilityPrivate,
		"GLOBAL":    VisibilityGlobal,
		"global":    VisibilityGlobal,
	}
	for input, want := range cases {
		got, err := NormalizeVisibility(input)
		if err != nil {
			t.Fatalf("NormalizeVisibility(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("NormalizeVisibility(%q) = %q, want %q", input, got, want)
		}
	}

	if _, err := NormalizeVisibility("team"); err == nil {
		t.Fatalf("expected unknown visibility to fail")
	}
}

func TestJSONArg(t *testing.T) {
	t.Parallel()

	if got := jsonArg(nil); got != nil {
		t.Fatalf("expected nil for empty expression, got %v", got)
	}
	if got := jsonArg([]byte(" null ")); got != nil {
		t.Fatalf("expected nil for null expression, got %v", got)
	}
	if got := jsonArg([]byte(` {"id":"a"} `)); got != `{"id":"a"}` {
		t.Fatalf("unexpected encoded expression: %v", got)
	}
}

func TestStringListCodec(t *testing.T) {
	t.Parallel()

	encoded, err := encodeStringList([]string{" a ", "", "b"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded != `["a","b"]` {
		t.Fatalf("unexpected encoding: %s", encoded)
	}

	decoded, err := decodeStringList([]byte(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != "a" || decoded[1] != "b" {
		t.Fatalf("unexpected decoding: %v", decoded)
	}

	empty, err := decodeStringList(nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v err=%v", empty, err)
	}
}

func TestFeedItemRecordHashed(t *testing.T) {
	t.Parallel()

	posted := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	hash := "0101"
	rec := FeedItemRecord{ItemUUID: "item-1", PostTime: &posted, SemanticHash: &hash}

	got := rec.Hashed()
	if got.ID != "item-1" || !got.PostTime.Equal(posted) || got.SemanticHash != hash {
		t.Fatalf("unexpected hashed view: %+v", got)
	}
	if (FeedItemRecord{ItemUUID: "bare"}).Hashed().Comparable() {
		t.Fatalf("item without time or hash must not be comparable")
	}
}
