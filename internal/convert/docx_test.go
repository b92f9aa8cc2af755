package convert

import (
	"archive/zip"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readPart(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("part %s not found in %s", name, path)
	return ""
}

func TestWriteDocxProducesValidPackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.docx")
	require.NoError(t, WriteDocx(path, [][]string{
		{"first page line one", "A&B <escaped>"},
		{"second page"},
	}))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	zr.Close()
	assert.ElementsMatch(t, []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"}, names)

	doc := readPart(t, path, "word/document.xml")
	assert.Contains(t, doc, "first page line one")
	assert.Contains(t, doc, "A&amp;B &lt;escaped&gt;")
	assert.Contains(t, doc, `<w:br w:type="page"/>`, "pages are separated by a page break")
	assert.True(t, strings.HasSuffix(doc, documentFooter))
}

func TestReadDocxBodyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.docx")
	require.NoError(t, WriteDocx(path, [][]string{{"hello", "world"}}))

	body, err := ReadDocxBody(path)
	require.NoError(t, err)
	assert.Contains(t, body, "hello")
	assert.Contains(t, body, "world")
	assert.NotContains(t, body, "<w:sectPr", "section properties are stripped for concatenation")
	assert.NotContains(t, body, "<w:body>")
}

func TestReadDocxBodyRejectsNonDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.docx")
	require.NoError(t, WriteDocx(path, [][]string{{"x"}}))

	_, err := ReadDocxBody(filepath.Join(t.TempDir(), "missing.docx"))
	assert.Error(t, err)
}

func TestExtractBody(t *testing.T) {
	body, err := extractBody(documentHeader + "<w:p/>" + documentFooter)
	require.NoError(t, err)
	assert.Equal(t, "<w:p/>", body)

	_, err = extractBody("<w:document/>")
	assert.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.pdf"), false)
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing.pdf"), true)
	assert.Error(t, err, "lenient mode does not excuse an unopenable document")
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitLines("a\r\nb\n"))
	assert.Equal(t, []string{""}, splitLines(""), "empty page keeps one empty paragraph")
}
