package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"molmind-rag/internal/loader"
	"molmind-rag/internal/splitter"
	"molmind-rag/internal/vectorstore"
)

func stubEmbedding(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, 8)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed%1000)/1000.0 + 0.001
	}
	return vec, nil
}

type fakeGenerator struct {
	answer  string
	err     error
	calls   int
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *vectorstore.Store, *fakeGenerator) {
	t.Helper()
	store := vectorstore.NewStore(t.TempDir(), "molmind", stubEmbedding)
	gen := &fakeGenerator{answer: "an answer"}
	orch := NewOrchestrator(loader.NewLoader(), splitter.NewSplitter(1000, 200), store, gen, 5)
	return orch, store, gen
}

func addChunks(t *testing.T, store *vectorstore.Store, userID, projectID, source string, contents ...string) {
	t.Helper()
	var chunks []splitter.Chunk
	for _, content := range contents {
		chunks = append(chunks, splitter.Chunk{
			Content: content,
			Metadata: map[string]string{
				"user_id":    userID,
				"project_id": projectID,
				"source":     source,
			},
		})
	}
	require.NoError(t, store.Add(context.Background(), chunks))
}

func TestChat_UninitializedIsDistinctFailure(t *testing.T) {
	orch, _, gen := newTestOrchestrator(t)

	_, err := orch.Chat(context.Background(), "u1", "p1", "What is X?", nil)
	require.Error(t, err)
	assert.Equal(t, KindUninitialized, KindOf(err))
	assert.Zero(t, gen.calls)
}

func TestChat_AnswerAndSources(t *testing.T) {
	orch, store, gen := newTestOrchestrator(t)
	addChunks(t, store, "u1", "p1", "https://example.com/doc",
		"alpha helices are common", "beta sheets fold")
	addChunks(t, store, "u1", "p1", "https://example.com/other", "gamma radiation")

	answer, err := orch.Chat(context.Background(), "u1", "p1", "What are alpha helices?", nil)
	require.NoError(t, err)

	assert.Equal(t, "an answer", answer.Text)
	assert.ElementsMatch(t, []string{"https://example.com/doc", "https://example.com/other"}, answer.Sources)

	require.Equal(t, 1, gen.calls)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "alpha helices are common")
	assert.Contains(t, prompt, "What are alpha helices?")
	assert.Contains(t, prompt, "molecular research assistant")
}

func TestChat_HistoryInPrompt(t *testing.T) {
	orch, store, gen := newTestOrchestrator(t)
	addChunks(t, store, "u1", "p1", "https://example.com/doc", "some context")

	history := [][]string{{"What is DNA?", "Deoxyribonucleic acid."}}
	_, err := orch.Chat(context.Background(), "u1", "p1", "And RNA?", history)
	require.NoError(t, err)

	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "Human: What is DNA?")
	assert.Contains(t, prompt, "Assistant: Deoxyribonucleic acid.")
}

func TestChat_EmptyRetrievalStillGenerates(t *testing.T) {
	orch, store, gen := newTestOrchestrator(t)
	addChunks(t, store, "u1", "p1", "https://example.com/doc", "only for u1")

	// Different user: the filter matches nothing, but the orchestrator does
	// not short-circuit.
	answer, err := orch.Chat(context.Background(), "u2", "p1", "What is X?", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Empty(t, answer.Sources)
	assert.Contains(t, gen.prompts[0], "<context>\n\n</context>")
}

func TestChat_RetrievalFailure(t *testing.T) {
	// The embedder works during ingestion but fails on the chat query, so the
	// error surfaces from retrieval rather than the model.
	embed := func(ctx context.Context, text string) ([]float32, error) {
		if text == "What is X?" {
			return nil, fmt.Errorf("embedding backend down")
		}
		return stubEmbedding(ctx, text)
	}
	store := vectorstore.NewStore(t.TempDir(), "molmind", embed)
	gen := &fakeGenerator{answer: "an answer"}
	orch := NewOrchestrator(loader.NewLoader(), splitter.NewSplitter(1000, 200), store, gen, 5)
	addChunks(t, store, "u1", "p1", "https://example.com/doc", "some context")

	_, err := orch.Chat(context.Background(), "u1", "p1", "What is X?", nil)
	require.Error(t, err)
	assert.Equal(t, KindRetrieval, KindOf(err))
	assert.Zero(t, gen.calls)
}

func TestChat_GenerationFailure(t *testing.T) {
	orch, store, gen := newTestOrchestrator(t)
	addChunks(t, store, "u1", "p1", "https://example.com/doc", "some context")
	gen.err = fmt.Errorf("model unavailable")

	_, err := orch.Chat(context.Background(), "u1", "p1", "What is X?", nil)
	require.Error(t, err)
	assert.Equal(t, KindGeneration, KindOf(err))
}

func TestChat_LoadsDurableCopyWhenNotResident(t *testing.T) {
	dir := t.TempDir()
	gen := &fakeGenerator{answer: "an answer"}

	first := vectorstore.NewStore(dir, "molmind", stubEmbedding)
	addChunks(t, first, "u1", "p1", "https://example.com/doc", "persisted context")
	require.NoError(t, first.Persist())

	// A fresh store over the same durable location: the orchestrator must
	// load it on first chat.
	store := vectorstore.NewStore(dir, "molmind", stubEmbedding)
	orch := NewOrchestrator(loader.NewLoader(), splitter.NewSplitter(1000, 200), store, gen, 5)

	answer, err := orch.Chat(context.Background(), "u1", "p1", "What is X?", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/doc"}, answer.Sources)
	assert.True(t, store.Initialized())
}

func TestIngest_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Doc</title></head><body><p>Molecules bind to receptors in specific conformations.</p></body></html>`)
	}))
	defer srv.Close()

	orch, store, _ := newTestOrchestrator(t)
	result, err := orch.Ingest(context.Background(), "u1", "p1", []string{srv.URL})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Documents)
	assert.Greater(t, result.Chunks, 0)
	require.Len(t, result.Links, 1)
	assert.Equal(t, srv.URL, result.Links[0].Source)
	assert.Equal(t, result.Chunks, store.Count())
}

func TestIngest_FailingLinkAbortsRequest(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "good content")
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	orch, store, _ := newTestOrchestrator(t)
	_, err := orch.Ingest(context.Background(), "u1", "p1", []string{good.URL, bad.URL})
	require.Error(t, err)
	assert.Equal(t, KindIngestion, KindOf(err))

	// No rollback: the good link's chunks stay behind.
	assert.Equal(t, 1, store.Count())
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "[]", formatHistory(nil))
	assert.Equal(t, "Human: q\nAssistant: a\n", formatHistory([][]string{{"q", "a"}}))
	assert.Equal(t, "Human: q\n", formatHistory([][]string{{"q"}}))
}
