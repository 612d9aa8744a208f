package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	xmlTag     = regexp.MustCompile(`<[^>]*>`)
	docxBreaks = strings.NewReplacer("</w:p>", "\n", "<w:br/>", "\n", "<w:cr/>", "\n", "<w:tab/>", "\t")
)

func readDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	return docxText(r.Editable().GetContent()), nil
}

// docxText flattens word/document.xml into text, one paragraph per line.
func docxText(content string) string {
	content = docxBreaks.Replace(content)
	content = xmlTag.ReplaceAllString(content, "")
	return html.UnescapeString(content)
}
