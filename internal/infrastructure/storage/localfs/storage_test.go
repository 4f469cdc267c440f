package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpen(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"runs/r1/input/0001_b.txt", "runs/r1/input/0000_a.txt", "runs/r2/manifest.json"} {
		if err := s.Save(ctx, key, strings.NewReader("data:"+key)); err != nil {
			t.Fatalf("Save(%s) error = %v", key, err)
		}
	}

	rc, err := s.Open(ctx, "runs/r1/input/0000_a.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != "data:runs/r1/input/0000_a.txt" {
		t.Fatalf("unexpected content: %q", raw)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Save(context.Background(), "../outside.txt", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for escaping key")
	}
}
