package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestCollectJSONFilesRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{"k":"v"}`)
	mustWriteFile(t, filepath.Join(root, "b.txt"), `x`)
	mustWriteFile(t, filepath.Join(root, ".hidden.json"), `{}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.json"), `{"k":"v2"}`)

	files, err := collectJSONFiles(root, true)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 json files, got %d (%v)", len(files), files)
	}
}

func TestCollectJSONFilesNonRecursive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{"k":"v"}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.json"), `{"k":"v2"}`)

	files, err := collectJSONFiles(root, false)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 json file, got %d (%v)", len(files), files)
	}
}

func TestValidatePayloadFilter(t *testing.T) {
	t.Parallel()

	complete := json.RawMessage(`{"id":"root","expr":{"allOf":[{"id":"a","expr":{"pred":{"type":"LITERAL","param":{"text":"foo"}}}}]}}`)
	ok, err := validatePayload(validateKindFilter, complete)
	if err != nil {
		t.Fatalf("expected complete filter to validate, got %v", err)
	}
	if !ok {
		t.Fatalf("expected complete filter to be reported complete")
	}

	placeholderOnly := json.RawMessage(`{"id":"root","expr":{"anyOf":[{"id":"hole"}]}}`)
	ok, err = validatePayload(validateKindFilter, placeholderOnly)
	if err != nil {
		t.Fatalf("expected placeholder filter to be well-formed, got %v", err)
	}
	if ok {
		t.Fatalf("expected placeholder-only group to be incomplete")
	}

	if _, err := validatePayload(validateKindFilter, json.RawMessage(`{"expr":{"allOf":[],"anyOf":[]}}`)); err == nil {
		t.Fatalf("expected node with two shapes to fail")
	}
}

func TestValidatePayloadItem(t *testing.T) {
	t.Parallel()

	ok, err := validatePayload(validateKindItem, json.RawMessage(`{"payload_version":"v1","external_id":"x-1","title":"hello"}`))
	if err != nil {
		t.Fatalf("expected item to validate, got %v", err)
	}
	if !ok {
		t.Fatalf("expected valid item to be complete")
	}

	if _, err := validatePayload(validateKindItem, json.RawMessage(`{"payload_version":"v1","title":"no id"}`)); err == nil {
		t.Fatalf("expected item without external_id to fail")
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
