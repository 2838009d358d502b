package splitter

import (
	"strings"

	"molmind-rag/internal/loader"
)

// Chunk is a bounded-length segment of a document, the unit of embedding and
// retrieval. Metadata is a copy of the parent document's metadata.
type Chunk struct {
	Content  string
	Metadata map[string]string
}

// Splitter cuts documents into fixed-size character windows with a fixed
// overlap between neighbours. The windows are hard cuts over runes, so every
// chunk except the last has exactly chunkSize characters and adjacent chunks
// share exactly overlap characters; stitching the chunks back together with
// the overlap removed reproduces the original text.
type Splitter struct {
	chunkSize int
	overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split chunks every document, each chunk inheriting its document's metadata
// unchanged. Documents with no non-whitespace content produce no chunks.
func (s *Splitter) Split(docs []loader.Document) []Chunk {
	var chunks []Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		for _, piece := range s.splitText(doc.Content) {
			chunks = append(chunks, Chunk{
				Content:  piece,
				Metadata: copyMeta(doc.Metadata),
			})
		}
	}
	return chunks
}

func (s *Splitter) splitText(text string) []string {
	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	step := s.chunkSize - s.overlap
	var pieces []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return pieces
}

func copyMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
