package knowledge

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// unreadable marks a document that failed to parse. It is reported as empty
// content so callers treat it as a client error.
func unreadable(fileType string, err any) error {
	return fmt.Errorf("%w: %s: %v", ErrEmptyContent, fileType, err)
}

// pdfText returns the text of every page, one page per line.
func pdfText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", unreadable("pdf", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", unreadable("pdf", err)
	}
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		t, err := p.GetPlainText(nil)
		if err != nil {
			return "", unreadable("pdf", fmt.Errorf("page %d: %w", i, err))
		}
		pages = append(pages, t)
	}
	return strings.ToValidUTF8(strings.Join(pages, "\n"), ""), nil
}

// docxText returns the paragraphs of a Word document, separated by blank
// lines so segments survive. Table cells come out one per paragraph.
func docxText(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", unreadable("docx", err)
	}
	defer r.Close()
	return wordText(r.Editable().GetContent())
}

// wordText walks WordprocessingML: text runs (w:t) accumulate into the
// enclosing paragraph (w:p), and tabs and breaks count only inside a run.
func wordText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var (
		paras  []string
		cur    strings.Builder
		inRun  int
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", unreadable("docx", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun++
			case "t":
				inText = inRun > 0
			case "tab":
				if inRun > 0 {
					cur.WriteByte('\t')
				}
			case "br", "cr":
				if inRun > 0 {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun--
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(cur.String()); p != "" {
					paras = append(paras, p)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return strings.Join(paras, "\n\n"), nil
}

// xlsxText returns every sheet as tab-separated rows, sheets separated by
// blank lines.
func xlsxText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", unreadable("xlsx", err)
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", unreadable("xlsx", fmt.Errorf("sheet %s: %w", name, err))
		}
		var lines []string
		for _, row := range rows {
			if line := strings.TrimRight(strings.Join(row, "\t"), "\t "); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			sheets = append(sheets, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(sheets, "\n\n"), nil
}
