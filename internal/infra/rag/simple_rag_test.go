package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestFlatFileKB_CachesFirstRead(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kb.txt")
	if err := os.WriteFile(p, []byte("TS template v1"), 0o600); err != nil {
		t.Fatal(err)
	}
	nop := zerolog.Nop()
	kb := NewFlatFileKB(p, &nop)

	if got := kb.ContextFor(context.Background(), "REPORT z."); got != "TS template v1" {
		t.Fatalf("got %q", got)
	}
	_ = os.WriteFile(p, []byte("changed"), 0o600)
	if got := kb.ContextFor(context.Background(), ""); got != "TS template v1" {
		t.Fatalf("cache bypassed: %q", got)
	}
}

func TestFlatFileKB_MissingFile(t *testing.T) {
	nop := zerolog.Nop()
	kb := NewFlatFileKB(filepath.Join(t.TempDir(), "none.txt"), &nop)
	if got := kb.ContextFor(context.Background(), "x"); got != "" {
		t.Fatalf("want empty context, got %q", got)
	}
}
