package knowledge

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FileType returns the lower-case extension of filename without the dot.
func FileType(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// SupportedTypes lists the file types ExtractText accepts.
var SupportedTypes = []string{"txt", "md", "csv", "html", "htm", "pdf", "docx", "xlsx"}

// ExtractText returns the readable text of a document of the given type.
func ExtractText(fileType string, data []byte) (string, error) {
	switch fileType {
	case "txt", "md", "csv":
		return strings.ToValidUTF8(string(data), ""), nil
	case "html", "htm":
		return htmlText(string(data))
	case "pdf":
		return pdfText(data)
	case "docx":
		return docxText(data)
	case "xlsx":
		return xlsxText(data)
	default:
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedType, fileType, strings.Join(SupportedTypes, ", "))
	}
}

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, th"

// htmlText keeps one paragraph per block element so segments survive.
func htmlText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	var paras []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are reported by their innermost element.
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if t := collapseSpace(s.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	if len(paras) == 0 {
		if t := collapseSpace(doc.Find("body").Text()); t != "" {
			paras = append(paras, t)
		}
	}
	return strings.Join(paras, "\n\n"), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
