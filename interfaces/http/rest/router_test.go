package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contexthub-backend/application/services"
	"contexthub-backend/domain/contexts"
	"contexthub-backend/infrastructure/persistence/memory"
	"contexthub-backend/interfaces/http/rest"
	"contexthub-backend/interfaces/mcp"
	pkgerrors "contexthub-backend/pkg/errors"
	"contexthub-backend/pkg/observability"
)

func startAPI(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	entries := memory.NewEntryRepository()
	store := services.NewContextStore(
		entries,
		memory.NewRelationshipRepository(),
		services.NewNaiveSearcher(entries),
		nil,
		nil,
		nil,
		observability.NewTracer("test", false),
		logger,
	)
	mcpServer := mcp.NewServer(store, mcp.NewBus(logger), nil, logger)
	router := rest.NewRouter(store, mcpServer, pkgerrors.NewErrorHandler(logger, false), logger, false)

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body map[string]interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	var wrapper struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wrapper))
	assert.True(t, wrapper.Success)
	require.NoError(t, json.Unmarshal(wrapper.Data, out))
}

func logBody(projectID string, lines ...string) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID,
		"content": map[string]interface{}{
			"type": "log",
			"log":  map[string]interface{}{"source": "test", "lines": lines},
		},
	}
}

func storeContext(t *testing.T, srv *httptest.Server, body map[string]interface{}) contexts.Envelope {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/v1/contexts", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var envelope contexts.Envelope
	decodeData(t, resp, &envelope)
	return envelope
}

func TestAPI_StoreAndGetContext(t *testing.T) {
	srv := startAPI(t)

	body := logBody("proj-1", "deploy started")
	body["tags"] = []string{"deploy"}
	envelope := storeContext(t, srv, body)

	assert.NotEmpty(t, envelope.ID)
	assert.Equal(t, "proj-1", envelope.Project.ID)
	assert.Contains(t, envelope.Tags, "deploy")

	resp, err := http.Get(srv.URL + "/api/v1/contexts/" + envelope.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched contexts.Envelope
	decodeData(t, resp, &fetched)
	assert.Equal(t, envelope.ID, fetched.ID)
}

func TestAPI_GetContext_NotFound(t *testing.T) {
	srv := startAPI(t)

	resp, err := http.Get(srv.URL + "/api/v1/contexts/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var apiErr pkgerrors.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, string(pkgerrors.ErrorTypeNotFound), apiErr.Type)
}

func TestAPI_StoreContext_ValidationError(t *testing.T) {
	srv := startAPI(t)

	resp := postJSON(t, srv.URL+"/api/v1/contexts", map[string]interface{}{
		"content": map[string]interface{}{"type": "custom", "custom": map[string]interface{}{}},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var apiErr pkgerrors.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Contains(t, apiErr.Message, "projectid is required")
}

func TestAPI_ArtifactVersioning(t *testing.T) {
	srv := startAPI(t)

	for _, line := range []string{"draft", "final"} {
		body := logBody("proj-1", line)
		body["name"] = "report"
		resp := postJSON(t, srv.URL+"/api/v1/artifacts", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Latest version by default
	resp, err := http.Get(srv.URL + "/api/v1/projects/proj-1/artifacts/report")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Specific version stays addressable
	v1, err := http.Get(srv.URL + "/api/v1/projects/proj-1/artifacts/report?version=1")
	require.NoError(t, err)
	defer v1.Body.Close()
	assert.Equal(t, http.StatusOK, v1.StatusCode)

	// History lists the full chain
	history, err := http.Get(srv.URL + "/api/v1/projects/proj-1/artifacts/report/history")
	require.NoError(t, err)
	defer history.Body.Close()
	require.Equal(t, http.StatusOK, history.StatusCode)

	var chain []contexts.ArtifactVersion
	decodeData(t, history, &chain)
	require.Len(t, chain, 2)
	assert.Equal(t, 1, chain[0].Version)
	assert.Equal(t, 2, chain[1].Version)

	missing, err := http.Get(srv.URL + "/api/v1/projects/proj-1/artifacts/report?version=9")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAPI_RelationshipsAndTraversal(t *testing.T) {
	srv := startAPI(t)

	errEntry := storeContext(t, srv, logBody("proj-1", "error observed"))
	deploy := storeContext(t, srv, logBody("proj-1", "deploy finished"))

	resp := postJSON(t, srv.URL+"/api/v1/relationships", map[string]interface{}{
		"source_id": errEntry.ID,
		"target_id": deploy.ID,
		"type":      "caused_by",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	related, err := http.Get(srv.URL + "/api/v1/contexts/" + errEntry.ID + "/related?direction=outgoing")
	require.NoError(t, err)
	defer related.Body.Close()
	require.Equal(t, http.StatusOK, related.StatusCode)

	var result []struct {
		RelationshipType string            `json:"relationship_type"`
		Entry            contexts.Envelope `json:"entry"`
	}
	decodeData(t, related, &result)
	require.Len(t, result, 1)
	assert.Equal(t, "caused_by", result[0].RelationshipType)
	assert.Equal(t, deploy.ID, result[0].Entry.ID)
}

func TestAPI_CreateSummary(t *testing.T) {
	srv := startAPI(t)

	first := storeContext(t, srv, logBody("proj-1", "a"))
	second := storeContext(t, srv, logBody("proj-1", "b"))

	body := logBody("proj-1", "a and b")
	body["entry_ids"] = []string{first.ID, second.ID}
	resp := postJSON(t, srv.URL+"/api/v1/summaries", body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Unknown references are rejected
	bad := logBody("proj-1", "sum")
	bad["entry_ids"] = []string{"ghost"}
	resp = postJSON(t, srv.URL+"/api/v1/summaries", bad)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ListAndSearch(t *testing.T) {
	srv := startAPI(t)

	for i := 0; i < 3; i++ {
		storeContext(t, srv, logBody("proj-1", fmt.Sprintf("event %d", i)))
	}
	tagged := logBody("proj-1", "database timeout")
	tagged["tags"] = []string{"incident"}
	storeContext(t, srv, tagged)

	list, err := http.Get(srv.URL + "/api/v1/projects/proj-1/contexts?limit=2")
	require.NoError(t, err)
	defer list.Body.Close()
	require.Equal(t, http.StatusOK, list.StatusCode)

	var listWrapper struct {
		Data []contexts.Envelope `json:"data"`
		Meta struct {
			Page struct {
				Limit   int  `json:"limit"`
				HasMore bool `json:"has_more"`
			} `json:"page"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&listWrapper))
	assert.Len(t, listWrapper.Data, 2)
	assert.Equal(t, 2, listWrapper.Meta.Page.Limit)
	assert.True(t, listWrapper.Meta.Page.HasMore)

	search, err := http.Get(srv.URL + "/api/v1/projects/proj-1/search?q=timeout&tag=incident")
	require.NoError(t, err)
	defer search.Body.Close()
	require.Equal(t, http.StatusOK, search.StatusCode)

	var found []contexts.Envelope
	decodeData(t, search, &found)
	require.Len(t, found, 1)
	assert.Contains(t, found[0].Tags, "incident")
}

func TestAPI_ToolInvokeStatusMapping(t *testing.T) {
	srv := startAPI(t)

	resp := postJSON(t, srv.URL+"/mcp/tools/invoke", map[string]interface{}{
		"tool_name":  "no_such_tool",
		"parameters": map[string]interface{}{},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var toolResp mcp.ToolResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&toolResp))
	assert.Equal(t, mcp.StatusError, toolResp.Status)
	assert.Equal(t, "no_such_tool", toolResp.ToolName)
	assert.NotEmpty(t, toolResp.Error)
	assert.Equal(t, string(pkgerrors.ErrorTypeNotFound), toolResp.ErrorType)
}

func TestAPI_HealthEndpoints(t *testing.T) {
	srv := startAPI(t)

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
