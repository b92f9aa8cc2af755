package convert

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Minimal WordprocessingML package: content types, package relationships,
// and a single document part.
const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

	packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

	documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

	documentFooter = `<w:sectPr/></w:body></w:document>`
)

// PageBreakXML starts a new page between merged or converted pages.
const PageBreakXML = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`

// WriteDocx writes pages of text lines as a DOCX file, one paragraph per line
// and a page break between pages.
func WriteDocx(path string, pages [][]string) error {
	var body bytes.Buffer
	for i, lines := range pages {
		if i > 0 {
			body.WriteString(PageBreakXML)
		}
		for _, line := range lines {
			writeParagraph(&body, line)
		}
	}
	return WriteDocxBody(path, body.String())
}

// WriteDocxBody writes a DOCX whose <w:body> content is the given
// WordprocessingML fragment (without a trailing sectPr).
func WriteDocxBody(path string, bodyXML string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(out)
	parts := []struct {
		name, data string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", packageRelsXML},
		{"word/document.xml", documentHeader + bodyXML + documentFooter},
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			out.Close()
			return err
		}
		if _, err := io.WriteString(w, part.data); err != nil {
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReadDocxBody returns the inner <w:body> fragment of a DOCX document part,
// with the trailing section properties stripped so fragments can be
// concatenated.
func ReadDocxBody(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document part: %w", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document part: %w", err)
		}
		return extractBody(string(data))
	}
	return "", fmt.Errorf("no document part in %s", path)
}

func extractBody(doc string) (string, error) {
	start := strings.Index(doc, "<w:body>")
	end := strings.LastIndex(doc, "</w:body>")
	if start < 0 || end < 0 || end < start {
		return "", fmt.Errorf("document part has no body element")
	}
	body := doc[start+len("<w:body>") : end]
	if i := strings.LastIndex(body, "<w:sectPr"); i >= 0 {
		body = body[:i]
	}
	return body, nil
}

func writeParagraph(buf *bytes.Buffer, text string) {
	buf.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
	_ = xml.EscapeText(buf, []byte(text))
	buf.WriteString(`</w:t></w:r></w:p>`)
}
