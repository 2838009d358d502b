package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Document is a unit of raw ingested text plus its source metadata. Chunks
// derived from it inherit the metadata verbatim.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Loader turns URLs into documents. arXiv abstract pages go through the
// identifier-based strategy, everything else is fetched and parsed by
// content type.
type Loader struct {
	client   *http.Client
	arxivAPI string
}

func NewLoader() *Loader {
	return &Loader{
		client:   &http.Client{Timeout: 30 * time.Second},
		arxivAPI: arxivAPIBase,
	}
}

// Acquire fetches link and returns the resulting documents, each tagged with
// user_id, project_id and source. Any fetch or parse failure is returned to
// the caller; nothing is dropped silently.
func (l *Loader) Acquire(ctx context.Context, link, userID, projectID string) ([]Document, error) {
	var (
		docs []Document
		err  error
	)
	if id, ok := arxivID(link); ok {
		docs, err = l.loadArxiv(ctx, id)
	} else {
		docs, err = l.loadWeb(ctx, link)
	}
	if err != nil {
		return nil, err
	}

	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]string{}
		}
		docs[i].Metadata["user_id"] = userID
		docs[i].Metadata["project_id"] = projectID
		docs[i].Metadata["source"] = link
	}
	return docs, nil
}

// loadWeb fetches a generic URL and extracts text based on the response
// content type, falling back to the URL extension when the server is vague.
func (l *Loader) loadWeb(ctx context.Context, link string) ([]Document, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	body, contentType, err := l.fetch(ctx, link)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(path.Ext(parsed.Path))
	var content string
	switch {
	case strings.Contains(contentType, "text/html"):
		content, err = extractHTML(body)
	case strings.Contains(contentType, "application/pdf") || ext == ".pdf":
		content, err = extractPDF(body)
	case ext == ".docx":
		content, err = extractDOCX(body)
	case ext == ".xlsx":
		content, err = extractXLSX(body)
	case strings.Contains(contentType, "text/markdown") || ext == ".md":
		content, err = extractMarkdown(body)
	case strings.Contains(contentType, "text/"):
		content = string(body)
	default:
		return nil, fmt.Errorf("unsupported content type %q for %s", contentType, link)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", link, err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("no readable content at %s", link)
	}

	log.Debug().Str("url", link).Str("content_type", contentType).Int("chars", len(content)).Msg("Loaded web document")
	return []Document{{Content: content}}, nil
}

func (l *Loader) fetch(ctx context.Context, link string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "MolMind-RAG/1.0 (Document Loader)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,text/*;q=0.9,*/*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP error %d fetching %s", resp.StatusCode, link)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
