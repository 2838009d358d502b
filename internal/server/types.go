package server

import "molmind-rag/internal/registry"

type initChatbotRequest struct {
	UserID    string   `json:"user_id"`
	ProjectID string   `json:"project_id"`
	Links     []string `json:"links"`
}

type chatRequest struct {
	UserID      string     `json:"user_id"`
	ProjectID   string     `json:"project_id"`
	Query       string     `json:"query"`
	ChatHistory [][]string `json:"chat_history,omitempty"`
}

type chatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status                 string `json:"status"`
	VectorstoreInitialized bool   `json:"vectorstore_initialized"`
}

type documentsResponse struct {
	Documents []registry.Record `json:"documents"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
