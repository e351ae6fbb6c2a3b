package mcp

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"contexthub-backend/domain/contexts"
	pkgerrors "contexthub-backend/pkg/errors"
)

func (s *Server) registerBuiltinTools() {
	builtins := []*Tool{
		{
			Name:        "save_context",
			Description: "Store an immutable context event for a project",
			Parameters: map[string]ParamSpec{
				"project_id": {Type: "string", Description: "Project the event belongs to", Required: true},
				"content":    {Type: "object", Description: "Type-tagged content object", Required: true},
				"user_id":    {Type: "string", Description: "User attribution"},
				"agent_id":   {Type: "string", Description: "Agent attribution"},
				"source":     {Type: "string", Description: "Originating system"},
				"tags":       {Type: "array", Description: "Entry tags"},
				"metadata":   {Type: "object", Description: "Arbitrary metadata"},
			},
			RequiredParameters: []string{"project_id", "content"},
			Handler:            s.handleSaveContext,
		},
		{
			Name:        "get_context",
			Description: "Retrieve a context entry by ID",
			Parameters: map[string]ParamSpec{
				"entry_id": {Type: "string", Description: "Entry ID", Required: true},
			},
			RequiredParameters: []string{"entry_id"},
			Handler:            s.handleGetContext,
		},
		{
			Name:        "search_context",
			Description: "Search project entries by content text and tags",
			Parameters: map[string]ParamSpec{
				"project_id": {Type: "string", Description: "Project to search", Required: true},
				"text":       {Type: "string", Description: "Case-insensitive content substring"},
				"tags":       {Type: "array", Description: "Entries must carry every tag"},
				"limit":      {Type: "integer", Description: "Maximum results"},
			},
			RequiredParameters: []string{"project_id"},
			Handler:            s.handleSearchContext,
		},
		{
			Name:        "list_project_context",
			Description: "List a project's entries newest first",
			Parameters: map[string]ParamSpec{
				"project_id": {Type: "string", Description: "Project to list", Required: true},
				"entry_type": {Type: "string", Description: "Filter by entry type: event, artifact or summary"},
				"limit":      {Type: "integer", Description: "Page size"},
				"offset":     {Type: "integer", Description: "Page offset"},
			},
			RequiredParameters: []string{"project_id"},
			Handler:            s.handleListProjectContext,
		},
		{
			Name:        "save_artifact",
			Description: "Store a new version of a named artifact",
			Parameters: map[string]ParamSpec{
				"project_id": {Type: "string", Description: "Project the artifact belongs to", Required: true},
				"name":       {Type: "string", Description: "Artifact name", Required: true},
				"content":    {Type: "object", Description: "Type-tagged content object", Required: true},
				"user_id":    {Type: "string", Description: "User attribution"},
				"agent_id":   {Type: "string", Description: "Agent attribution"},
				"tags":       {Type: "array", Description: "Entry tags"},
				"metadata":   {Type: "object", Description: "Arbitrary metadata"},
			},
			RequiredParameters: []string{"project_id", "name", "content"},
			Handler:            s.handleSaveArtifact,
		},
		{
			Name:        "get_artifact",
			Description: "Retrieve a named artifact, latest version unless one is given",
			Parameters: map[string]ParamSpec{
				"project_id": {Type: "string", Description: "Project the artifact belongs to", Required: true},
				"name":       {Type: "string", Description: "Artifact name", Required: true},
				"version":    {Type: "integer", Description: "Specific version, 0 or absent for latest"},
			},
			RequiredParameters: []string{"project_id", "name"},
			Handler:            s.handleGetArtifact,
		},
		{
			Name:        "create_relationship",
			Description: "Link two context entries with a typed relationship",
			Parameters: map[string]ParamSpec{
				"source_id": {Type: "string", Description: "Source entry ID", Required: true},
				"target_id": {Type: "string", Description: "Target entry ID", Required: true},
				"type":      {Type: "string", Description: "Relationship type", Required: true},
				"metadata":  {Type: "object", Description: "Arbitrary metadata"},
			},
			RequiredParameters: []string{"source_id", "target_id", "type"},
			Handler:            s.handleCreateRelationship,
		},
		{
			Name:        "get_related_context",
			Description: "Traverse the relationship graph one hop from an entry",
			Parameters: map[string]ParamSpec{
				"entry_id":  {Type: "string", Description: "Entry to traverse from", Required: true},
				"type":      {Type: "string", Description: "Filter by relationship type"},
				"direction": {Type: "string", Description: "outgoing, incoming or both; both by default"},
			},
			RequiredParameters: []string{"entry_id"},
			Handler:            s.handleGetRelatedContext,
		},
		{
			Name:        "create_summary",
			Description: "Store a summary referencing existing entries by ID",
			Parameters: map[string]ParamSpec{
				"project_id": {Type: "string", Description: "Project the summary belongs to", Required: true},
				"content":    {Type: "object", Description: "Type-tagged content object", Required: true},
				"entry_ids":  {Type: "array", Description: "IDs of the summarized entries", Required: true},
				"user_id":    {Type: "string", Description: "User attribution"},
				"agent_id":   {Type: "string", Description: "Agent attribution"},
			},
			RequiredParameters: []string{"project_id", "content", "entry_ids"},
			Handler:            s.handleCreateSummary,
		},
		{
			Name:               "list_connections",
			Description:        "List live MCP connections",
			Parameters:         map[string]ParamSpec{},
			RequiredParameters: []string{},
			Handler:            s.handleListConnections,
		},
	}

	for _, tool := range builtins {
		if err := s.tools.Register(tool); err != nil {
			s.logger.Error("Failed to register builtin tool", zap.Error(err))
		}
	}
}

func (s *Server) handleSaveContext(ctx context.Context, req *ToolRequest) (interface{}, error) {
	content, err := parseContent(req.Map("content"))
	if err != nil {
		return nil, err
	}
	entry, err := s.store.StoreEvent(ctx, req.String("project_id"), content, entryOptions(req)...)
	if err != nil {
		return nil, err
	}
	return entry.ToWireFormat(), nil
}

func (s *Server) handleGetContext(ctx context.Context, req *ToolRequest) (interface{}, error) {
	entry, err := s.store.GetEntry(ctx, req.String("entry_id"))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, pkgerrors.NewNotFoundError("entry " + req.String("entry_id"))
	}
	return entry.ToWireFormat(), nil
}

func (s *Server) handleSearchContext(ctx context.Context, req *ToolRequest) (interface{}, error) {
	entries, err := s.store.SearchEntries(ctx, req.String("project_id"), req.String("text"), req.StringSlice("tags"), req.Int("limit"))
	if err != nil {
		return nil, err
	}
	return envelopes(entries), nil
}

func (s *Server) handleListProjectContext(ctx context.Context, req *ToolRequest) (interface{}, error) {
	entries, err := s.store.GetEntriesByProject(
		ctx,
		req.String("project_id"),
		contexts.EntryType(req.String("entry_type")),
		req.Int("limit"),
		req.Int("offset"),
	)
	if err != nil {
		return nil, err
	}
	return envelopes(entries), nil
}

func (s *Server) handleSaveArtifact(ctx context.Context, req *ToolRequest) (interface{}, error) {
	content, err := parseContent(req.Map("content"))
	if err != nil {
		return nil, err
	}
	entry, err := s.store.StoreArtifact(ctx, req.String("project_id"), req.String("name"), content, entryOptions(req)...)
	if err != nil {
		return nil, err
	}
	return entry.ToWireFormat(), nil
}

func (s *Server) handleGetArtifact(ctx context.Context, req *ToolRequest) (interface{}, error) {
	entry, err := s.store.GetArtifactByName(ctx, req.String("project_id"), req.String("name"), req.Int("version"))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, pkgerrors.NewNotFoundError("artifact " + req.String("name"))
	}
	return entry.ToWireFormat(), nil
}

func (s *Server) handleCreateRelationship(ctx context.Context, req *ToolRequest) (interface{}, error) {
	rel, err := s.store.CreateRelationship(
		ctx,
		req.String("source_id"),
		req.String("target_id"),
		contexts.RelationshipType(req.String("type")),
		req.Map("metadata"),
	)
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (s *Server) handleGetRelatedContext(ctx context.Context, req *ToolRequest) (interface{}, error) {
	related, err := s.store.GetRelatedEntries(
		ctx,
		req.String("entry_id"),
		contexts.RelationshipType(req.String("type")),
		contexts.Direction(req.String("direction")),
	)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]interface{}, 0, len(related))
	for _, rel := range related {
		result = append(result, map[string]interface{}{
			"relationship_type": string(rel.Type),
			"entry":             rel.Entry.ToWireFormat(),
		})
	}
	return result, nil
}

func (s *Server) handleCreateSummary(ctx context.Context, req *ToolRequest) (interface{}, error) {
	content, err := parseContent(req.Map("content"))
	if err != nil {
		return nil, err
	}
	entry, err := s.store.CreateSummary(ctx, req.String("project_id"), content, req.StringSlice("entry_ids"), entryOptions(req)...)
	if err != nil {
		return nil, err
	}
	return entry.ToWireFormat(), nil
}

func (s *Server) handleListConnections(_ context.Context, _ *ToolRequest) (interface{}, error) {
	conns := s.connections.List()
	result := make([]map[string]interface{}, 0, len(conns))
	for _, conn := range conns {
		result = append(result, map[string]interface{}{
			"connection_id": conn.ID,
			"client_id":     conn.ClientID,
			"transport":     string(conn.Transport),
			"connected_at":  conn.CreatedAt,
		})
	}
	return result, nil
}

// parseContent decodes the type-tagged content object through the
// domain codec so tag-payload consistency is enforced at the boundary
func parseContent(raw map[string]interface{}) (contexts.Content, error) {
	if raw == nil {
		return contexts.Content{}, pkgerrors.NewInvalidArgumentError("content must be an object")
	}
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

func entryOptions(req *ToolRequest) []contexts.EntryOption {
	opts := make([]contexts.EntryOption, 0, 5)
	if v := req.String("user_id"); v != "" {
		opts = append(opts, contexts.WithUserID(v))
	}
	if v := req.String("agent_id"); v != "" {
		opts = append(opts, contexts.WithAgentID(v))
	}
	if v := req.String("source"); v != "" {
		opts = append(opts, contexts.WithSource(v))
	}
	if v := req.StringSlice("tags"); len(v) > 0 {
		opts = append(opts, contexts.WithTags(v))
	}
	if v := req.Map("metadata"); len(v) > 0 {
		opts = append(opts, contexts.WithMetadata(v))
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
