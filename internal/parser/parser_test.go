package parser

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag/internal/parser/pdftest"
)

func TestExtract_PDF(t *testing.T) {
	e := NewExtractor()
	data := pdftest.Build("The cat sat on the mat.", "It was a sunny day.")

	content, err := e.Extract("cat.pdf", data)
	require.NoError(t, err)
	assert.Contains(t, content, "The cat sat on the mat.")
	assert.Contains(t, content, "It was a sunny day.")
	assert.Less(t, strings.Index(content, "cat sat"), strings.Index(content, "sunny"))
	assert.Contains(t, content, "\n")
}

func TestExtract_UnknownExtensionIsPDF(t *testing.T) {
	e := NewExtractor()
	content, err := e.Extract("upload", pdftest.Build("Hello from a page."))
	require.NoError(t, err)
	assert.Contains(t, content, "Hello from a page.")
}

func TestExtract_InvalidPDF(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract("broken.pdf", []byte("this is not a pdf"))
	assert.Error(t, err)
}

// extractWithin runs Extract and fails the test on a panic or when it does
// not return within two seconds.
func extractWithin(t *testing.T, data []byte) error {
	t.Helper()

	type result struct {
		err      error
		panicked any
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{panicked: r}
			}
		}()
		_, err := NewExtractor().Extract("damaged.pdf", data)
		done <- result{err: err}
	}()

	select {
	case res := <-done:
		require.Nil(t, res.panicked, "extract panicked")
		return res.err
	case <-time.After(2 * time.Second):
		t.Fatal("extract did not return")
		return nil
	}
}

func TestExtract_DamagedPDF(t *testing.T) {
	doc := pdftest.Build("Hello from a page.")
	require.Contains(t, string(doc), "/Kids [4 0 R]")
	require.Contains(t, string(doc), "/Parent 2 0 R")

	corrupt := func(pos int) []byte {
		out := bytes.Clone(doc)
		out[pos] = '!'
		return out
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "broken kids key", data: bytes.Replace(doc, []byte("/Kids"), []byte("/K!ds"), 1)},
		{name: "empty kids", data: bytes.Replace(doc, []byte("/Kids [4 0 R]"), []byte("/Kids [    ]"), 1)},
		{name: "kids point at their own node", data: bytes.Replace(doc, []byte("/Kids [4 0 R]"), []byte("/Kids [2 0 R]"), 1)},
		{name: "page is its own parent", data: bytes.Replace(doc, []byte("/Parent 2 0 R"), []byte("/Parent 4 0 R"), 1)},
		{name: "first object damaged", data: corrupt(len("%PDF-1.4\n"))},
		{name: "truncated", data: doc[:len(doc)/2]},
		{name: "header only", data: []byte("%PDF-1.4\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, extractWithin(t, tt.data))
		})
	}
}

// Any single damaged byte or early cut must come back as a result, never as
// a crash or a stuck request.
func TestExtract_DamagedPDFSweep(t *testing.T) {
	doc := pdftest.Build("Hello from a page.")

	for pos := range doc {
		out := bytes.Clone(doc)
		out[pos] = '!'
		t.Run(fmt.Sprintf("byte %d", pos), func(t *testing.T) {
			extractWithin(t, out)
		})
	}
	for n := 0; n < len(doc); n++ {
		t.Run(fmt.Sprintf("cut %d", n), func(t *testing.T) {
			extractWithin(t, doc[:n])
		})
	}
}

func TestExtract_PlainText(t *testing.T) {
	e := NewExtractor()
	content, err := e.Extract("notes.TXT", []byte("plain notes"))
	require.NoError(t, err)
	assert.Equal(t, "plain notes", content)
}

func TestExtract_EmptyText(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract("empty.txt", []byte("  \n\t "))
	assert.ErrorIs(t, err, ErrNoExtractableText)
}

func TestExtract_Markdown(t *testing.T) {
	e := NewExtractor()
	src := "# Title\n\nSome **bold** text and a [link](http://example.com).\n\n```go\nfmt.Println(1)\n```\n"
	content, err := e.Extract("readme.md", []byte(src))
	require.NoError(t, err)

	assert.Contains(t, content, "Title")
	assert.Contains(t, content, "Some bold text and a link.")
	assert.Contains(t, content, "fmt.Println(1)")
	assert.NotContains(t, content, "**")
	assert.NotContains(t, content, "http://example.com")
}

func TestExtractTextFromXML(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		tag  string
		want string
	}{
		{
			name: "plain runs",
			xml:  `<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve">world</w:t></w:r></w:p>`,
			tag:  "w:t",
			want: "Hello world ",
		},
		{
			name: "similar tag names are ignored",
			xml:  `<w:tbl><w:tab/><w:t>cell</w:t></w:tbl>`,
			tag:  "w:t",
			want: "cell ",
		},
		{
			name: "slide text",
			xml:  `<a:p><a:t>Slide one</a:t></a:p>`,
			tag:  "a:t",
			want: "Slide one ",
		},
		{
			name: "no match",
			xml:  `<w:p></w:p>`,
			tag:  "w:t",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTextFromXML(tt.xml, tt.tag))
		})
	}
}
