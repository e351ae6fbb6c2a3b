package common

import (
	"net/http"
	"strconv"
)

// ListParams represents limit/offset parameters for timeline queries.
// Context entries are ordered by timestamp descending, so paging is
// a simple window over that ordering.
type ListParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DefaultListParams returns the default query window
func DefaultListParams() ListParams {
	return ListParams{
		Limit:  50,
		Offset: 0,
	}
}

// ExtractListParams extracts limit/offset parameters from a request
func ExtractListParams(r *http.Request) ListParams {
	params := DefaultListParams()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			if l > 200 {
				l = 200 // Max window size
			}
			params.Limit = l
		}
	}

	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			params.Offset = o
		}
	}

	return params
}

// NewPaginationInfo builds response metadata for a list window
func NewPaginationInfo(params ListParams, count int) *PaginationInfo {
	return &PaginationInfo{
		Limit:   params.Limit,
		Offset:  params.Offset,
		Count:   count,
		HasMore: count == params.Limit,
	}
}
