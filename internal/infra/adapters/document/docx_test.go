package document

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"ai-agent-backend/internal/domain"
)

func readPart(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open docx: %v", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open part: %v", err)
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return string(b)
	}
	t.Fatalf("part %s missing", name)
	return ""
}

func TestParseBlocks(t *testing.T) {
	got := parseBlocks("Technical Specification", "## Introduction \n\nSome <text> & more\n   \n## Data Model\nrow")
	want := []block{
		{style: "Heading1", text: "Technical Specification"},
		{style: "Heading2", text: "Introduction"},
		{text: "Some <text> & more"},
		{style: "Heading2", text: "Data Model"},
		{text: "row"},
	}
	if len(got) != len(want) {
		t.Fatalf("want %d blocks, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("block %d: want %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestDocxRenderer_Render(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "dir", "job_1_ts.docx")
	r := NewDocxRenderer("Technical Specification")

	if err := r.Render("## Introduction\nA & B <c>", dest); err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := readPart(t, dest, "word/document.xml")
	for _, s := range []string{
		`<w:pStyle w:val="Heading1"/>`,
		"Technical Specification",
		`<w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t xml:space="preserve">Introduction`,
		"A &amp; B &lt;c&gt;",
	} {
		if !strings.Contains(doc, s) {
			t.Errorf("document.xml missing %q", s)
		}
	}
	if ct := readPart(t, dest, "[Content_Types].xml"); !strings.Contains(ct, "/word/document.xml") {
		t.Error("content types do not declare the main part")
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestDocxRenderer_IOError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := NewDocxRenderer("T").Render("x", filepath.Join(blocker, "out.docx"))
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("want ErrIO, got %v", err)
	}
}
