// Package convert is the document processor: given a readable PDF it
// deterministically produces a DOCX artifact or fails. It knows nothing about
// jobs or supervision; the worker drives it through the page callback.
package convert

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageFunc is called before each page is processed. Returning an error aborts
// the conversion; this is the worker's checkpoint hook.
type PageFunc func(page, total int) error

// Document is an open PDF being converted. In lenient mode pages that fail to
// parse are replaced with a placeholder instead of failing the conversion;
// strict mode fails on the first bad page.
type Document struct {
	file    *os.File
	reader  *pdf.Reader
	lenient bool
}

func Open(path string, lenient bool) (doc *Document, err error) {
	// The pdf library panics on some malformed cross-reference tables; a bad
	// document must surface as an error either way.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("open pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &Document{file: f, reader: r, lenient: lenient}, nil
}

func (d *Document) Close() error {
	return d.file.Close()
}

func (d *Document) PageCount() int {
	return d.reader.NumPage()
}

// Convert extracts every page and writes the DOCX artifact to outputPath.
func (d *Document) Convert(outputPath string, onPage PageFunc) error {
	total := d.reader.NumPage()
	if total == 0 {
		return errors.New("document has no pages")
	}

	pages := make([][]string, 0, total)
	for i := 1; i <= total; i++ {
		if onPage != nil {
			if err := onPage(i, total); err != nil {
				return err
			}
		}
		text, err := pageText(d.reader.Page(i))
		if err != nil {
			if !d.lenient {
				return fmt.Errorf("page %d: %w", i, err)
			}
			text = fmt.Sprintf("[page %d could not be converted]", i)
		}
		pages = append(pages, splitLines(text))
	}

	if err := WriteDocx(outputPath, pages); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

// pageText isolates the pdf library's panics on malformed content objects so
// a bad page surfaces as an error the fallback path can handle.
func pageText(p pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract page text: %v", r)
		}
	}()
	if p.V.IsNull() {
		return "", errors.New("empty page object")
	}
	return p.GetPlainText(nil)
}

func splitLines(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if trimmed := strings.TrimRight(l, " \t"); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		out = append(out, "")
	}
	return out
}
