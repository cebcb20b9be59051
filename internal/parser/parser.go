package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// ErrNoExtractableText is returned when a file parses but holds no text.
var ErrNoExtractableText = errors.New("no extractable text")

// Extractor turns an uploaded file into plain document text.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract dispatches on the filename extension. Anything unknown is treated as
// a PDF, which is what the upload endpoint expects.
func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	var (
		content string
		err     error
	)
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".docx":
		content, err = parseDOCX(data)
	case ".pptx":
		content, err = parsePPTX(data)
	case ".xlsx":
		content, err = parseXLSX(data)
	case ".xlsm":
		content, err = parseXLSM(data)
	case ".txt":
		content = string(data)
	case ".md", ".markdown":
		content, err = parseMarkdown(data)
	default:
		content, err = parsePDF(data)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrNoExtractableText
	}
	return content, nil
}

// page tree limits; a damaged tree can point back at itself
const (
	maxPageTreeDepth = 32
	maxPageTreeNodes = 1 << 16
)

// parsePDF returns the page texts joined with newlines. The pdf package
// reports malformed input by panicking, so that is turned into an error here.
func parsePDF(data []byte) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			content = ""
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pageNodes, err := collectPages(reader.Trailer().Key("Root").Key("Pages"))
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, len(pageNodes))
	for i, v := range pageNodes {
		pageText, err := pdf.Page{V: v}.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i+1, err)
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}

// collectPages walks the page tree depth first and returns the leaf pages in
// document order.
func collectPages(root pdf.Value) ([]pdf.Value, error) {
	var (
		pages   []pdf.Value
		visited int
	)

	var walk func(node pdf.Value, depth int) error
	walk = func(node pdf.Value, depth int) error {
		visited++
		if visited > maxPageTreeNodes {
			return fmt.Errorf("malformed pdf: page tree has more than %d nodes", maxPageTreeNodes)
		}
		if depth > maxPageTreeDepth {
			return fmt.Errorf("malformed pdf: page tree deeper than %d", maxPageTreeDepth)
		}
		if node.Kind() != pdf.Dict {
			return nil
		}

		if node.Key("Type").Name() == "Page" {
			if !parentChainEnds(node) {
				return fmt.Errorf("malformed pdf: page parent chain does not end")
			}
			pages = append(pages, node)
			return nil
		}

		kids := node.Key("Kids")
		if kids.Kind() != pdf.Array {
			return nil
		}
		for i := 0; i < kids.Len(); i++ {
			if err := walk(kids.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return pages, nil
}

// parentChainEnds guards the inherited-attribute lookup the pdf package runs
// for every page, which follows /Parent without a bound.
func parentChainEnds(page pdf.Value) bool {
	v := page
	for i := 0; i <= maxPageTreeDepth; i++ {
		if v.IsNull() {
			return true
		}
		v = v.Key("Parent")
	}
	return false
}

func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var paragraphs []string
	for _, p := range strings.Split(content, "</w:p>") {
		p = strings.TrimSpace(extractTextFromXML(p, "w:t"))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

func parsePPTX(data []byte) (string, error) {
	f, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}

	var slides []string
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := strings.TrimSpace(extractTextFromXML(string(raw), "a:t"))
		if slideText != "" {
			slides = append(slides, slideText)
		}
	}
	return strings.Join(slides, "\n"), nil
}

func parseXLSX(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}

	var sb strings.Builder
	for _, sheet := range f.Sheets {
		sb.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func parseXLSM(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open xlsm: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// parseMarkdown strips markdown syntax, keeping one line per block.
func parseMarkdown(data []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(data))

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				buf.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteString("\n")
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(data))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("walk markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// extractTextFromXML concatenates the bodies of every <tag>...</tag> element.
func extractTextFromXML(xmlContent, tag string) string {
	var out strings.Builder
	open, end := "<"+tag, "</"+tag+">"
	rest := xmlContent
	for {
		start := strings.Index(rest, open)
		if start < 0 {
			break
		}
		rest = rest[start+len(open):]
		// skip attributes and make sure we matched the whole tag name
		gt := strings.Index(rest, ">")
		if gt < 0 {
			break
		}
		if gt > 0 && rest[0] != ' ' {
			continue
		}
		rest = rest[gt+1:]
		endIdx := strings.Index(rest, end)
		if endIdx < 0 {
			break
		}
		out.WriteString(rest[:endIdx])
		out.WriteString(" ")
		rest = rest[endIdx+len(end):]
	}
	return out.String()
}
