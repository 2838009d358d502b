package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"molmind-rag/internal/splitter"
)

const compress = false

// Result is one similarity-search hit.
type Result struct {
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// Store is the process-wide vector index. The resident chromem database is a
// guarded singleton: absent at startup, created by the first Add, reloadable
// from its exported file, and discarded (in memory only) by Reset. All
// mutation of the resident pointer happens under the write lock.
type Store struct {
	mu   sync.RWMutex
	db   *chromem.DB
	coll *chromem.Collection

	collectionName string
	filePath       string
	embed          chromem.EmbeddingFunc
}

// NewStore creates a store persisting to persistDir/<collection>.chromem.
// Embeddings are always computed through embed, both for documents and
// queries, so a reloaded index never falls back to a different embedder.
func NewStore(persistDir, collectionName string, embed chromem.EmbeddingFunc) *Store {
	return &Store{
		collectionName: collectionName,
		filePath:       filepath.Join(persistDir, collectionName+".chromem"),
		embed:          embed,
	}
}

// Initialized reports whether an index is resident in memory. It never
// touches the durable copy.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll != nil
}

// Count returns the number of entries in the resident index, zero when none
// is resident.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coll == nil {
		return 0
	}
	return s.coll.Count()
}

// Add embeds the chunks and appends them to the index, creating it from the
// first batch when none is resident yet. Entries keep their chunk metadata
// verbatim. There is no deduplication: adding the same content twice stores
// it twice.
func (s *Store) Add(ctx context.Context, chunks []splitter.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		emb, err := s.embed(ctx, chunk.Content)
		if err != nil {
			return fmt.Errorf("failed to embed chunk: %w", err)
		}
		docs = append(docs, chromem.Document{
			ID:        uuid.NewString(),
			Content:   chunk.Content,
			Metadata:  chunk.Metadata,
			Embedding: emb,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureCollectionLocked(); err != nil {
		return err
	}
	if err := s.coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search embeds the query and returns the k nearest entries whose metadata
// matches where exactly. A filter matching nothing yields an empty result,
// not an error. Searching with no resident index is an error.
func (s *Store) Search(ctx context.Context, query string, where map[string]string, k int) ([]Result, error) {
	if !s.Initialized() {
		return nil, fmt.Errorf("no index resident")
	}

	queryEmb, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coll == nil {
		return nil, fmt.Errorf("no index resident")
	}

	// chromem rejects nResults larger than the collection.
	if count := s.coll.Count(); count < k {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	hits, err := s.coll.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmb,
		NResults:       k,
		Where:          where,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Content:    hit.Content,
			Metadata:   hit.Metadata,
			Similarity: hit.Similarity,
		})
	}
	return results, nil
}

// Persist exports the resident index (vectors and metadata) to the durable
// file, overwriting any previous export.
func (s *Store) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return fmt.Errorf("no index resident")
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create persist directory: %w", err)
	}
	if err := s.db.ExportToFile(s.filePath, compress, "", s.collectionName); err != nil {
		return fmt.Errorf("failed to export index: %w", err)
	}
	log.Debug().Str("path", s.filePath).Msg("Persisted vector index")
	return nil
}

// Load replaces the resident index with the durable copy. It fails when no
// prior export exists at the configured path.
func (s *Store) Load() error {
	db := chromem.NewDB()
	if err := db.ImportFromFile(s.filePath, ""); err != nil {
		return fmt.Errorf("failed to import index from %s: %w", s.filePath, err)
	}
	coll := db.GetCollection(s.collectionName, s.embed)
	if coll == nil {
		return fmt.Errorf("collection %q missing from imported index", s.collectionName)
	}

	s.mu.Lock()
	s.db = db
	s.coll = coll
	s.mu.Unlock()

	log.Info().Str("path", s.filePath).Int("entries", coll.Count()).Msg("Loaded vector index")
	return nil
}

// Reset drops the resident index. The durable copy is untouched.
func (s *Store) Reset() {
	s.mu.Lock()
	s.db = nil
	s.coll = nil
	s.mu.Unlock()
}

func (s *Store) ensureCollectionLocked() error {
	if s.coll != nil {
		return nil
	}
	db := chromem.NewDB()
	coll, err := db.GetOrCreateCollection(s.collectionName, nil, s.embed)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	s.db = db
	s.coll = coll
	return nil
}
