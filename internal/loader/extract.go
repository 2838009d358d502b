package loader

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var whitespaceRe = regexp.MustCompile(`[ \t]+`)

// extractHTML pulls the readable text out of an HTML page: title plus body,
// with boilerplate elements removed.
func extractHTML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, aside, noscript").Remove()

	var content strings.Builder
	if title := strings.TrimSpace(doc.Find("title").Text()); title != "" {
		content.WriteString(title)
		content.WriteString("\n\n")
	}
	content.WriteString(doc.Find("body").Text())

	return cleanText(content.String()), nil
}

func extractPDF(body []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", err
	}

	var content strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		content.WriteString(pageText)
		content.WriteString("\n\n")
	}
	return content.String(), nil
}

func extractDOCX(body []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	// GetContent returns the raw document XML; text lives in <w:t> runs.
	return extractXMLText(r.Editable().GetContent(), "<w:t"), nil
}

func extractXLSX(body []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var content strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		content.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			content.WriteString(strings.Join(row, "\t"))
			content.WriteString("\n")
		}
	}
	return content.String(), nil
}

// extractMarkdown renders markdown to HTML and strips the markup, so that
// tables and lists come out as plain text.
func extractMarkdown(body []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert(body, &buf); err != nil {
		return "", err
	}
	return extractHTML(buf.Bytes())
}

// extractXMLText pulls text runs out of OOXML content. openTag is the tag
// prefix holding text, e.g. "<w:t" for docx runs.
func extractXMLText(xmlContent, openTag string) string {
	var text strings.Builder
	for _, part := range strings.Split(xmlContent, openTag)[1:] {
		// Guard against longer tags sharing the prefix, e.g. <w:tbl> vs <w:t>.
		if !strings.HasPrefix(part, ">") && !strings.HasPrefix(part, " ") {
			continue
		}
		gt := strings.Index(part, ">")
		if gt < 0 {
			continue
		}
		part = part[gt+1:]
		if end := strings.Index(part, "</"); end >= 0 {
			text.WriteString(part[:end])
			text.WriteString("\n")
		}
	}
	return text.String()
}

func cleanText(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
