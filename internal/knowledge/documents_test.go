package knowledge

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// docxFixture builds a minimal Word document with one paragraph per para.
func docxFixture(t *testing.T, paras ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paras {
		body.WriteString(`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t xml:space="preserve">`)
		if err := xml.EscapeText(&body, []byte(p)); err != nil {
			t.Fatal(err)
		}
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	files := map[string]string{
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("write docx: %v", err)
	}
	return buf.Bytes()
}

func xlsxFixture(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	for name, rows := range sheets {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		for i, row := range rows {
			for j, v := range row {
				cell, err := excelize.CoordinatesToCellName(j+1, i+1)
				if err != nil {
					t.Fatal(err)
				}
				if err := f.SetCellValue(name, cell, v); err != nil {
					t.Fatalf("SetCellValue: %v", err)
				}
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		t.Fatalf("DeleteSheet: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDocx(t *testing.T) {
	data := docxFixture(t, "Go backend engineer", "", "Built a Kafka pipeline")
	text, err := ExtractText("docx", data)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "Go backend engineer\n\nBuilt a Kafka pipeline" {
		t.Errorf("text = %q", text)
	}
	if got := CountSegments(text); got != 2 {
		t.Errorf("segments = %d, want 2", got)
	}
}

func TestWordText(t *testing.T) {
	const doc = `<w:document xmlns:w="w"><w:body>` +
		`<w:p><w:r><w:t>Skills</w:t></w:r><w:r><w:tab/><w:t>Go</w:t></w:r></w:p>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Redis</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
		`<w:p><w:r><w:t>line one</w:t><w:br/><w:t>line two</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	got, err := wordText(doc)
	if err != nil {
		t.Fatalf("wordText: %v", err)
	}
	if want := "Skills\tGo\n\nRedis\n\nline one\nline two"; got != want {
		t.Errorf("wordText() = %q, want %q", got, want)
	}
	if _, err := wordText("<w:p><w:r>"); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("truncated xml error = %v, want ErrEmptyContent", err)
	}
}

func TestExtractXlsx(t *testing.T) {
	data := xlsxFixture(t, map[string][][]string{
		"Skills": {{"Skill", "Years"}, {"Go", "5"}, {"Redis", "3"}},
	})
	text, err := ExtractText("xlsx", data)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "Skill\tYears\nGo\t5\nRedis\t3" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("%PDF-1.7\n"), []byte("not a pdf at all, just text")} {
		_, err := ExtractText("pdf", data)
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("ExtractText(%q) error = %v, want ErrEmptyContent", data, err)
		}
	}
}

func TestReadDocuments(t *testing.T) {
	tests := []struct {
		name    string
		docs    []Document
		want    string
		wantErr error
	}{
		{
			name: "joined in order",
			docs: []Document{
				{Filename: "a.md", Data: []byte("  First  ")},
				{Filename: "b.docx", Data: docxFixture(t, "Second")},
			},
			want: "First\n\nSecond",
		},
		{
			name:    "unsupported",
			docs:    []Document{{Filename: "a.md", Data: []byte("ok")}, {Filename: "b.rtf", Data: []byte("x")}},
			wantErr: ErrUnsupportedType,
		},
		{
			name:    "empty",
			docs:    []Document{{Filename: "blank.txt", Data: []byte("\n \n")}},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "too large",
			docs:    []Document{{Filename: "big.txt", Data: make([]byte, MaxUploadBytes+1)}},
			wantErr: ErrTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadDocuments(tt.docs)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadDocuments() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ReadDocuments() = %q, want %q", got, tt.want)
			}
			if err != nil && !strings.Contains(err.Error(), tt.docs[len(tt.docs)-1].Filename) {
				t.Errorf("error %q should name the file", err)
			}
		})
	}
}
