package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"contexthub-backend/application/services"
	"contexthub-backend/domain/config"
	"contexthub-backend/domain/contexts"
	"contexthub-backend/pkg/common"
	pkgerrors "contexthub-backend/pkg/errors"
	"contexthub-backend/pkg/utils"
)

// ContextHandler serves the REST ingestion and query endpoints for
// context entries
type ContextHandler struct {
	store  *services.ContextStore
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewContextHandler creates a new context handler
func NewContextHandler(store *services.ContextStore, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *ContextHandler {
	return &ContextHandler{
		store:  store,
		errors: errHandler,
		logger: logger,
	}
}

type storeContextRequest struct {
	ProjectID string                 `json:"project_id" validate:"required"`
	Content   map[string]interface{} `json:"content" validate:"required"`
	UserID    string                 `json:"user_id"`
	AgentID   string                 `json:"agent_id"`
	Source    string                 `json:"source"`
	Tags      []string               `json:"tags" validate:"max=20,dive,max=64"`
	Metadata  map[string]interface{} `json:"metadata"`
}

type storeArtifactRequest struct {
	storeContextRequest
	Name string `json:"name" validate:"required"`
}

type createSummaryRequest struct {
	storeContextRequest
	EntryIDs []string `json:"entry_ids" validate:"required,min=1"`
}

// StoreContext handles POST /api/v1/contexts
func (h *ContextHandler) StoreContext(w http.ResponseWriter, r *http.Request) {
	var req storeContextRequest
	if err := h.decode(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	content, err := decodeContent(req.Content)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	entry, err := h.store.StoreEvent(r.Context(), req.ProjectID, content, entryOptions(&req)...)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, entry.ToWireFormat())
}

// StoreArtifact handles POST /api/v1/artifacts
func (h *ContextHandler) StoreArtifact(w http.ResponseWriter, r *http.Request) {
	var req storeArtifactRequest
	if err := h.decode(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	content, err := decodeContent(req.Content)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	entry, err := h.store.StoreArtifact(r.Context(), req.ProjectID, req.Name, content, entryOptions(&req.storeContextRequest)...)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, entry.ToWireFormat())
}

// CreateSummary handles POST /api/v1/summaries
func (h *ContextHandler) CreateSummary(w http.ResponseWriter, r *http.Request) {
	var req createSummaryRequest
	if err := h.decode(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	content, err := decodeContent(req.Content)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	entry, err := h.store.CreateSummary(r.Context(), req.ProjectID, content, req.EntryIDs, entryOptions(&req.storeContextRequest)...)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, entry.ToWireFormat())
}

// GetContext handles GET /api/v1/contexts/{entryID}
func (h *ContextHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	entry, err := h.store.GetEntry(r.Context(), entryID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if entry == nil {
		h.errors.Handle(w, r, pkgerrors.NewNotFoundError("entry "+entryID))
		return
	}
	common.RespondJSON(w, http.StatusOK, entry.ToWireFormat())
}

// ListProjectContexts handles GET /api/v1/projects/{projectID}/contexts
func (h *ContextHandler) ListProjectContexts(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	params := common.ExtractListParams(r)
	entryType := contexts.EntryType(r.URL.Query().Get("entry_type"))

	entries, err := h.store.GetEntriesByProject(r.Context(), projectID, entryType, params.Limit, params.Offset)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondWithMeta(w, http.StatusOK, envelopes(entries), &common.MetaInfo{
		Timestamp: utils.NowRFC3339(),
		Page:      common.NewPaginationInfo(params, len(entries)),
	})
}

// SearchContexts handles GET /api/v1/projects/{projectID}/search
func (h *ContextHandler) SearchContexts(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	query := r.URL.Query()

	limit := config.DefaultSearchLimit
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	entries, err := h.store.SearchEntries(r.Context(), projectID, query.Get("q"), query["tag"], limit)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, envelopes(entries))
}

// GetArtifact handles GET /api/v1/projects/{projectID}/artifacts/{name}
func (h *ContextHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	name := chi.URLParam(r, "name")

	version := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.errors.Handle(w, r, pkgerrors.NewInvalidArgumentError("version must be a non-negative integer"))
			return
		}
		version = parsed
	}

	entry, err := h.store.GetArtifactByName(r.Context(), projectID, name, version)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if entry == nil {
		h.errors.Handle(w, r, pkgerrors.NewNotFoundError("artifact "+name))
		return
	}
	common.RespondJSON(w, http.StatusOK, entry.ToWireFormat())
}

// GetArtifactHistory handles GET /api/v1/projects/{projectID}/artifacts/{name}/history
func (h *ContextHandler) GetArtifactHistory(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	name := chi.URLParam(r, "name")

	chain, err := h.store.GetArtifactHistory(r.Context(), projectID, name)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, chain)
}

func (h *ContextHandler) decode(r *http.Request, v interface{}) error {
	if err := common.ParseJSONBody(r, v, config.MaxContentBytes); err != nil {
		return pkgerrors.NewInvalidArgumentError("malformed request body").WithCause(err)
	}
	return utils.ValidateStruct(v)
}

func decodeContent(raw map[string]interface{}) (contexts.Content, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return contexts.Content{}, pkgerrors.NewInvalidArgumentError("content is not serializable")
	}
	var content contexts.Content
	if err := json.Unmarshal(data, &content); err != nil {
		return contexts.Content{}, err
	}
	return content, nil
}

func entryOptions(req *storeContextRequest) []contexts.EntryOption {
	opts := make([]contexts.EntryOption, 0, 5)
	if req.UserID != "" {
		opts = append(opts, contexts.WithUserID(req.UserID))
	}
	if req.AgentID != "" {
		opts = append(opts, contexts.WithAgentID(req.AgentID))
	}
	if req.Source != "" {
		opts = append(opts, contexts.WithSource(req.Source))
	}
	if len(req.Tags) > 0 {
		opts = append(opts, contexts.WithTags(req.Tags))
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, contexts.WithMetadata(req.Metadata))
	}
	return opts
}

func envelopes(entries []*contexts.Entry) []contexts.Envelope {
	result := make([]contexts.Envelope, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entry.ToWireFormat())
	}
	return result
}
