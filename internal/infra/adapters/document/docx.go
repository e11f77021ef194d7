package document

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"ai-agent-backend/internal/domain"
	"ai-agent-backend/internal/domain/ports/adapter"
)

const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var _ adapter.DocumentRenderer = (*DocxRenderer)(nil)

// DocxRenderer writes a minimal WordprocessingML package: a level-1 title,
// "## " lines as level-2 headings and every other non-blank line as a
// paragraph.
type DocxRenderer struct {
	Title string
}

func NewDocxRenderer(title string) *DocxRenderer {
	return &DocxRenderer{Title: title}
}

type block struct {
	style string // "" for body text
	text  string
}

func parseBlocks(title, text string) []block {
	blocks := []block{{style: "Heading1", text: title}}
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, block{style: "Heading2", text: strings.TrimSpace(line[3:])})
		case strings.TrimSpace(line) != "":
			blocks = append(blocks, block{text: line})
		}
	}
	return blocks
}

func (r *DocxRenderer) Render(text, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return domain.IO(fmt.Errorf("create output dir: %w", err))
	}

	var buf bytes.Buffer
	if err := writePackage(&buf, parseBlocks(r.Title, text)); err != nil {
		return domain.IO(fmt.Errorf("build docx: %w", err))
	}
	tmp := destPath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return domain.IO(fmt.Errorf("write docx: %w", err))
	}
	if err := os.Rename(tmp, destPath); err != nil {
		_ = os.Remove(tmp)
		return domain.IO(fmt.Errorf("write docx: %w", err))
	}
	return nil
}

func writePackage(buf *bytes.Buffer, blocks []block) error {
	zw := zip.NewWriter(buf)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", documentXML(blocks)},
	}
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return err
		}
	}
	return zw.Close()
}

func documentXML(blocks []block) string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, b := range blocks {
		sb.WriteString("<w:p>")
		if b.style != "" {
			sb.WriteString(`<w:pPr><w:pStyle w:val="` + b.style + `"/></w:pPr>`)
		}
		sb.WriteString(`<w:r><w:t xml:space="preserve">`)
		_ = xml.EscapeText(&sb, []byte(sanitize(b.text)))
		sb.WriteString("</w:t></w:r></w:p>")
	}
	sb.WriteString(`<w:sectPr/></w:body></w:document>`)
	return sb.String()
}

// sanitize drops runes that are not legal in XML 1.0 documents.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = xml.Header + `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`</w:styles>`
