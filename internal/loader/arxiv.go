package loader

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

const arxivAPIBase = "https://export.arxiv.org/api/query"

var arxivAbsRe = regexp.MustCompile(`arxiv\.org/abs/([0-9.]+)`)

// arxivID extracts the arXiv identifier from an abstract-page URL. URLs on
// arxiv.org that are not abstract pages fall through to the web loader.
func arxivID(link string) (string, bool) {
	if !strings.Contains(link, "arxiv.org") {
		return "", false
	}
	m := arxivAbsRe.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Authors []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
}

// loadArxiv fetches paper metadata from the arXiv Atom API and, when the
// paper PDF is reachable, its full text. A PDF failure degrades to the
// abstract-only document rather than failing the ingestion.
func (l *Loader) loadArxiv(ctx context.Context, id string) ([]Document, error) {
	body, _, err := l.fetch(ctx, fmt.Sprintf("%s?id_list=%s", l.arxivAPI, id))
	if err != nil {
		return nil, fmt.Errorf("arXiv API query for %s failed: %w", id, err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse arXiv API response: %w", err)
	}
	if len(feed.Entries) == 0 || strings.TrimSpace(feed.Entries[0].Title) == "" {
		return nil, fmt.Errorf("arXiv paper %s not found", id)
	}
	entry := feed.Entries[0]

	var authors []string
	for _, a := range entry.Authors {
		authors = append(authors, strings.TrimSpace(a.Name))
	}

	var content strings.Builder
	content.WriteString(strings.TrimSpace(entry.Title))
	content.WriteString("\n\n")
	if len(authors) > 0 {
		content.WriteString(strings.Join(authors, ", "))
		content.WriteString("\n\n")
	}
	content.WriteString(strings.TrimSpace(entry.Summary))

	if text, err := l.arxivFullText(ctx, id, entry); err != nil {
		log.Warn().Err(err).Str("arxiv_id", id).Msg("Failed to load paper PDF, using abstract only")
	} else if text != "" {
		content.WriteString("\n\n")
		content.WriteString(text)
	}

	return []Document{{Content: content.String()}}, nil
}

func (l *Loader) arxivFullText(ctx context.Context, id string, entry arxivEntry) (string, error) {
	pdfURL := fmt.Sprintf("https://arxiv.org/pdf/%s", id)
	for _, link := range entry.Links {
		if link.Type == "application/pdf" && link.Href != "" {
			pdfURL = link.Href
			break
		}
	}

	body, _, err := l.fetch(ctx, pdfURL)
	if err != nil {
		return "", err
	}
	return extractPDF(body)
}
