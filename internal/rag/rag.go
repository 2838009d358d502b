package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"molmind-rag/internal/llm"
	"molmind-rag/internal/loader"
	"molmind-rag/internal/splitter"
	"molmind-rag/internal/vectorstore"
)

const answerTemplate = `You are a professional AI molecular research assistant. Based on the user's query and the provided context, provide a helpful and accurate response.

Your goals:
1. Understand the user's molecular research question or concern.
2. Provide scientifically accurate information based on the context.
3. If the information is not found in the context, clearly state that.
4. Be concise and professional in your responses.
5. Never make up scientific data that isn't supported by the context.

<context>
{{.context}}
</context>

Chat History: {{.chat_history}}
User Query: {{.question}}

Your Response:
`

var answerPrompt = prompts.NewPromptTemplate(answerTemplate, []string{"context", "chat_history", "question"})

// Answer is the orchestrator's chat result: the model's response plus the
// deduplicated sources of the retrieved chunks.
type Answer struct {
	Text    string
	Sources []string
}

// IngestResult reports how much one ingestion request processed.
type IngestResult struct {
	Documents int
	Chunks    int
	Links     []LinkIngest
}

// LinkIngest is the per-link share of an ingestion.
type LinkIngest struct {
	Source string
	Chunks int
}

// Orchestrator runs the retrieval-augmented workflows: ingestion
// (acquire, split, embed, persist) and chat (retrieve, compose, generate).
// It is stateless across requests; all shared state lives in the store.
type Orchestrator struct {
	loader   *loader.Loader
	splitter *splitter.Splitter
	store    *vectorstore.Store
	gen      llm.Generator
	topK     int
}

func NewOrchestrator(ld *loader.Loader, sp *splitter.Splitter, store *vectorstore.Store, gen llm.Generator, topK int) *Orchestrator {
	if topK <= 0 {
		topK = 5
	}
	return &Orchestrator{loader: ld, splitter: sp, store: store, gen: gen, topK: topK}
}

// Ingest acquires every link, splits the documents into chunks, appends them
// to the index and persists it. A failure on any link aborts the whole
// request; chunks already added stay in the index (no rollback).
func (o *Orchestrator) Ingest(ctx context.Context, userID, projectID string, links []string) (*IngestResult, error) {
	result := &IngestResult{}
	for _, link := range links {
		docs, err := o.loader.Acquire(ctx, link, userID, projectID)
		if err != nil {
			return nil, wrapError("ingest", KindIngestion, err)
		}

		chunks := o.splitter.Split(docs)
		if err := o.store.Add(ctx, chunks); err != nil {
			return nil, wrapError("ingest", KindIngestion, err)
		}

		result.Documents += len(docs)
		result.Chunks += len(chunks)
		result.Links = append(result.Links, LinkIngest{Source: link, Chunks: len(chunks)})
	}

	if err := o.store.Persist(); err != nil {
		return nil, wrapError("ingest", KindIngestion, err)
	}

	log.Info().
		Str("user_id", userID).
		Str("project_id", projectID).
		Int("documents", result.Documents).
		Int("chunks", result.Chunks).
		Msg("Ingested links")
	return result, nil
}

// Chat answers a query against the caller's user/project slice of the index.
// When no index is resident it tries the durable copy once; failing that the
// caller must ingest first. Retrieval returning nothing still goes to the
// model with empty context — the template's own instruction covers the
// nothing-found case.
func (o *Orchestrator) Chat(ctx context.Context, userID, projectID, query string, history [][]string) (*Answer, error) {
	if !o.store.Initialized() {
		if err := o.store.Load(); err != nil {
			log.Debug().Err(err).Msg("No durable index to load")
			return nil, wrapError("chat", KindUninitialized, ErrUninitialized)
		}
	}

	where := map[string]string{"user_id": userID, "project_id": projectID}
	results, err := o.store.Search(ctx, query, where, o.topK)
	if err != nil {
		return nil, wrapError("chat", KindRetrieval, err)
	}

	contexts := make([]string, 0, len(results))
	for _, res := range results {
		contexts = append(contexts, res.Content)
	}

	prompt, err := answerPrompt.Format(map[string]any{
		"context":      strings.Join(contexts, "\n\n"),
		"chat_history": formatHistory(history),
		"question":     query,
	})
	if err != nil {
		return nil, wrapError("chat", KindGeneration, err)
	}

	answer, err := o.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, wrapError("chat", KindGeneration, err)
	}

	log.Debug().
		Str("user_id", userID).
		Str("project_id", projectID).
		Int("retrieved", len(results)).
		Msg("Generated answer")
	return &Answer{Text: answer, Sources: extractSources(results)}, nil
}

// formatHistory renders caller-supplied (question, answer) pairs for the
// prompt. Malformed pairs are rendered as-is rather than rejected.
func formatHistory(history [][]string) string {
	if len(history) == 0 {
		return "[]"
	}
	var b strings.Builder
	for _, turn := range history {
		switch len(turn) {
		case 0:
			continue
		case 1:
			fmt.Fprintf(&b, "Human: %s\n", turn[0])
		default:
			fmt.Fprintf(&b, "Human: %s\nAssistant: %s\n", turn[0], turn[1])
		}
	}
	return b.String()
}

// extractSources collects the source URL of every retrieved chunk,
// deduplicated. The generator does not report which chunks it consulted, so
// all retrieved chunks count as consulted. Order is not guaranteed.
func extractSources(results []vectorstore.Result) []string {
	seen := make(map[string]struct{}, len(results))
	sources := make([]string, 0, len(results))
	for _, res := range results {
		src := res.Metadata["source"]
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	return sources
}
