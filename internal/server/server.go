package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"molmind-rag/internal/rag"
	"molmind-rag/internal/registry"
	"molmind-rag/internal/vectorstore"
)

// Server exposes the RAG workflows over HTTP. It holds no request state of
// its own; the index lifecycle lives in the store.
type Server struct {
	orch  *rag.Orchestrator
	store *vectorstore.Store
	reg   *registry.Registry
}

func New(orch *rag.Orchestrator, store *vectorstore.Store, reg *registry.Registry) *Server {
	return &Server{orch: orch, store: store, reg: reg}
}

// Routes builds the full handler chain: open CORS around request logging
// around the endpoint mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/init-chatbot", s.handleInitChatbot)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/refresh-data", s.handleRefreshData)
	mux.HandleFunc("/documents", s.handleDocuments)
	return withCORS(withLogging(mux))
}

func (s *Server) handleInitChatbot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req initChatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" || req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "user_id and project_id are required")
		return
	}
	if len(req.Links) == 0 {
		writeError(w, http.StatusBadRequest, "links is required")
		return
	}

	result, err := s.orch.Ingest(r.Context(), req.UserID, req.ProjectID, req.Links)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error initializing chatbot: "+err.Error())
		return
	}

	s.recordIngestion(r, &req, result)

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Processed %d documents with %d chunks", result.Documents, result.Chunks),
	})
}

// recordIngestion writes the audit records for a successful ingestion.
// Registry trouble is logged, never surfaced: the index already has the data.
func (s *Server) recordIngestion(r *http.Request, req *initChatbotRequest, result *rag.IngestResult) {
	if !s.reg.Enabled() {
		return
	}
	for _, link := range result.Links {
		rec := &registry.Record{
			UserID:     req.UserID,
			ProjectID:  req.ProjectID,
			Source:     link.Source,
			ChunkCount: link.Chunks,
		}
		if err := s.reg.Add(r.Context(), rec); err != nil {
			log.Warn().Err(err).Str("source", link.Source).Msg("Failed to record ingestion")
		}
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" || req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "user_id and project_id are required")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := s.orch.Chat(r.Context(), req.UserID, req.ProjectID, req.Query, req.ChatHistory)
	if err != nil {
		if rag.KindOf(err) == rag.KindUninitialized {
			writeError(w, http.StatusInternalServerError, "No vector store initialized. Please initialize the chatbot first.")
			return
		}
		writeError(w, http.StatusInternalServerError, "Error processing chat: "+err.Error())
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer.Text, Sources: sources})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:                 "healthy",
		VectorstoreInitialized: s.store.Initialized(),
	})
}

func (s *Server) handleRefreshData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.store.Reset()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: "Vector store cleared. Ready for new initialization.",
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.reg.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "document registry is not configured")
		return
	}

	userID := r.URL.Query().Get("user_id")
	projectID := r.URL.Query().Get("project_id")
	if userID == "" || projectID == "" {
		writeError(w, http.StatusBadRequest, "user_id and project_id are required")
		return
	}

	recs, err := s.reg.List(r.Context(), userID, projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error listing documents: "+err.Error())
		return
	}
	if recs == nil {
		recs = []registry.Record{}
	}
	writeJSON(w, http.StatusOK, documentsResponse{Documents: recs})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Detail: detail})
}
