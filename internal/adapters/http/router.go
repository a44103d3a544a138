package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
	"github.com/jungujeong/GovRAG-sub000/internal/core/ports"
	"github.com/jungujeong/GovRAG-sub000/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	resolver ports.TurnResolver
	sessions *sessionManager
	registry ports.DocumentRegistry
	queue    ports.MessageQueue
	metrics  *metrics.HTTPServerMetrics

	rateLimitPerSecond float64
	rateLimitBurst     int
}

type RouterOptions struct {
	RecentMessages     int
	RateLimitPerSecond float64
	RateLimitBurst     int
	Metrics            *metrics.HTTPServerMetrics
}

func NewRouter(
	resolver ports.TurnResolver,
	store ports.SessionStore,
	registry ports.DocumentRegistry,
	queue ports.MessageQueue,
	options RouterOptions,
) *Router {
	return &Router{
		resolver:           resolver,
		sessions:           newSessionManager(store, options.RecentMessages),
		registry:           registry,
		queue:              queue,
		metrics:            options.Metrics,
		rateLimitPerSecond: options.RateLimitPerSecond,
		rateLimitBurst:     options.RateLimitBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/turns/resolve", rt.resolveTurn)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(rt.rateLimitPerSecond, rt.rateLimitBurst, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type resolveTurnRequest struct {
	SessionID string        `json:"session_id"`
	Query     string        `json:"query"`
	DocIDs    []string      `json:"doc_ids,omitempty"`
	TopK      int           `json:"top_k,omitempty"`
	History   []chatMessage `json:"history,omitempty"`
}

type resolveTurnResponse struct {
	SessionID     string                   `json:"session_id"`
	Status        domain.ResolutionStatus  `json:"status"`
	Mode          domain.ScopeMode         `json:"mode"`
	Evidence      []domain.ScoredCandidate `json:"evidence"`
	AllowedDocIDs []string                 `json:"allowed_doc_ids,omitempty"`
	CitationEpoch int                      `json:"citation_epoch"`
	Query         domain.RetrievalQuery    `json:"query"`
	Diagnostics   domain.Diagnostics       `json:"diagnostics"`
}

func (rt *Router) resolveTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req resolveTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	start := time.Now()
	// One writer per session: concurrent turns of the same session would
	// race on scope state.
	unlock := rt.sessions.lock(req.SessionID)
	defer unlock()

	state, err := rt.sessions.load(r.Context(), req.SessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if len(req.History) > 0 {
		state.RecentMessages = state.RecentMessages[:0]
		for _, msg := range req.History {
			state.RecentMessages = append(state.RecentMessages, domain.ConversationMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}

	turnReq := ports.TurnRequest{
		Query:             req.Query,
		RequestedDocIDs:   req.DocIDs,
		SessionDocIDs:     state.DocIDs,
		PreviousDocIDs:    state.PreviousDocIDs,
		ShouldUsePrevious: len(req.DocIDs) == 0 && len(state.PreviousDocIDs) > 0,
		TopK:              req.TopK,
		RecentMessages:    state.RecentMessages,
		Summary:           state.Summary,
		CarriedEntities:   state.CarriedEntities,
	}

	result, err := rt.resolver.ResolveTurn(r.Context(), turnReq)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.sessions.apply(state, req.Query, result)
	if err := rt.sessions.save(r.Context(), state); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordTurn(serviceName, string(result.Mode), string(result.Status), len(result.Evidence), time.Since(start))
		rt.metrics.RecordDegradations(serviceName, result.Diagnostics.Degradations)
		if result.Mode == domain.ScopeExpanded {
			rt.metrics.RecordTopicChange(serviceName)
		}
	}

	writeJSON(w, http.StatusOK, resolveTurnResponse{
		SessionID:     state.SessionID,
		Status:        result.Status,
		Mode:          result.Mode,
		Evidence:      result.Evidence,
		AllowedDocIDs: result.AllowedDocIDs,
		CitationEpoch: state.CitationEpoch,
		Query:         result.Query,
		Diagnostics:   result.Diagnostics,
	})
}

type registerDocumentRequest struct {
	DocID      string        `json:"doc_id"`
	Title      string        `json:"title"`
	SourceName string        `json:"source_name"`
	Pages      int           `json:"pages"`
	Chunks     []chunkUpload `json:"chunks"`
	Embeddings [][]float32   `json:"embeddings,omitempty"`
}

type chunkUpload struct {
	Text      string `json:"text"`
	Page      int    `json:"page"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
	Type      string `json:"chunk_type,omitempty"`
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.listDocuments(w, r)
	case http.MethodPost:
		rt.registerDocument(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.registry.List(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) registerDocument(w http.ResponseWriter, r *http.Request) {
	var req registerDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	docID := domain.NormalizeDocID(req.DocID)
	if docID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "doc_id is required"})
		return
	}
	if len(req.Chunks) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chunks are required"})
		return
	}

	title := req.Title
	if title == "" {
		title = docID
	}
	doc := &domain.Document{
		ID:         docID,
		Title:      title,
		SourceName: req.SourceName,
		Pages:      req.Pages,
		Status:     domain.StatusRegistered,
	}
	if err := rt.registry.Register(r.Context(), doc); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	batch := domain.ChunkBatch{
		DocID:      docID,
		Title:      title,
		Chunks:     make([]domain.EvidenceChunk, 0, len(req.Chunks)),
		Embeddings: req.Embeddings,
	}
	for _, chunk := range req.Chunks {
		batch.Chunks = append(batch.Chunks, domain.EvidenceChunk{
			DocID:     docID,
			Page:      chunk.Page,
			Text:      chunk.Text,
			StartChar: chunk.StartChar,
			EndChar:   chunk.EndChar,
			Type:      domain.ChunkType(chunk.Type),
		})
	}
	if err := rt.queue.PublishChunkBatch(r.Context(), batch); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}
	docID := domain.NormalizeDocID(id)

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.registry.GetByID(r.Context(), docID)
		if err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		rt.deleteDocument(w, r, docID)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// deleteDocument drops the registry row synchronously and broadcasts a
// deletion batch so every index replica removes the document's chunks.
func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, docID string) {
	if err := rt.registry.Delete(r.Context(), docID); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if err := rt.queue.PublishChunkBatch(r.Context(), domain.ChunkBatch{DocID: docID, Delete: true}); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"doc_id": docID, "status": "deleting"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
