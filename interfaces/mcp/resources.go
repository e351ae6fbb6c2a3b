package mcp

import (
	"sync"

	pkgerrors "contexthub-backend/pkg/errors"
	"contexthub-backend/pkg/utils"
)

// ResourceTypeContext marks a resource wrapping a context entry. Tool
// invocations referencing a context_id must resolve to this type.
const ResourceTypeContext = "context"

// Resource is an addressable piece of content registered with the
// server, identified by URI
type Resource struct {
	URI         string                 `json:"uri"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Content     interface{}            `json:"content,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   string                 `json:"created_at"`
}

// ResourceRegistry holds registered resources keyed by URI
type ResourceRegistry struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewResourceRegistry creates an empty resource registry
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{resources: make(map[string]*Resource)}
}

// Register adds a resource. Re-registering an existing URI is a
// conflict; resources are replaced through Update.
func (r *ResourceRegistry) Register(resource *Resource) error {
	if resource == nil || resource.URI == "" {
		return pkgerrors.NewInvalidArgumentError("resource uri is required")
	}
	if resource.CreatedAt == "" {
		resource.CreatedAt = utils.NowRFC3339()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[resource.URI]; exists {
		return pkgerrors.NewConflictError("resource " + resource.URI + " already registered")
	}
	r.resources[resource.URI] = resource
	return nil
}

// Update replaces an existing resource
func (r *ResourceRegistry) Update(resource *Resource) error {
	if resource == nil || resource.URI == "" {
		return pkgerrors.NewInvalidArgumentError("resource uri is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[resource.URI]; !exists {
		return pkgerrors.NewNotFoundError("resource " + resource.URI)
	}
	r.resources[resource.URI] = resource
	return nil
}

// Get returns the resource by URI, nil when unknown
func (r *ResourceRegistry) Get(uri string) *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resources[uri]
}

// List returns all registered resources
func (r *ResourceRegistry) List() []*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resources := make([]*Resource, 0, len(r.resources))
	for _, resource := range r.resources {
		resources = append(resources, resource)
	}
	return resources
}

// Remove deletes a resource by URI
func (r *ResourceRegistry) Remove(uri string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[uri]; !exists {
		return false
	}
	delete(r.resources, uri)
	return true
}
