package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"contexthub-backend/application/services"
	"contexthub-backend/domain/config"
	"contexthub-backend/domain/contexts"
	"contexthub-backend/pkg/common"
	pkgerrors "contexthub-backend/pkg/errors"
	"contexthub-backend/pkg/utils"
)

// RelationshipHandler serves the relationship graph endpoints
type RelationshipHandler struct {
	store  *services.ContextStore
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewRelationshipHandler creates a new relationship handler
func NewRelationshipHandler(store *services.ContextStore, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *RelationshipHandler {
	return &RelationshipHandler{
		store:  store,
		errors: errHandler,
		logger: logger,
	}
}

type createRelationshipRequest struct {
	SourceID string                 `json:"source_id" validate:"required"`
	TargetID string                 `json:"target_id" validate:"required"`
	Type     string                 `json:"type" validate:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

// CreateRelationship handles POST /api/v1/relationships
func (h *RelationshipHandler) CreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req createRelationshipRequest
	if err := common.ParseJSONBody(r, &req, config.MaxContentBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewInvalidArgumentError("malformed request body").WithCause(err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	rel, err := h.store.CreateRelationship(r.Context(), req.SourceID, req.TargetID, contexts.RelationshipType(req.Type), req.Metadata)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, rel)
}

// GetRelated handles GET /api/v1/contexts/{entryID}/related
func (h *RelationshipHandler) GetRelated(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	query := r.URL.Query()

	related, err := h.store.GetRelatedEntries(
		r.Context(),
		entryID,
		contexts.RelationshipType(query.Get("type")),
		contexts.Direction(query.Get("direction")),
	)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result := make([]map[string]interface{}, 0, len(related))
	for _, rel := range related {
		result = append(result, map[string]interface{}{
			"relationship_type": string(rel.Type),
			"entry":             rel.Entry.ToWireFormat(),
		})
	}
	common.RespondJSON(w, http.StatusOK, result)
}
