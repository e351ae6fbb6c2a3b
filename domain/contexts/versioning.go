package contexts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ArtifactVersion summarizes one version of a named artifact
type ArtifactVersion struct {
	EntryID         string    `json:"entry_id"`
	ArtifactName    string    `json:"artifact_name"`
	Version         int       `json:"version"`
	ParentVersionID string    `json:"parent_version_id,omitempty"`
	Checksum        string    `json:"checksum"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedBy       string    `json:"created_by,omitempty"`
}

// NewArtifactVersion builds the version summary for an artifact entry
func NewArtifactVersion(entry *Entry) (*ArtifactVersion, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry cannot be nil")
	}
	if !entry.IsArtifact() {
		return nil, fmt.Errorf("entry %s is not an artifact", entry.ID)
	}

	checksum, err := ComputeChecksum(entry.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to compute checksum: %w", err)
	}

	return &ArtifactVersion{
		EntryID:         entry.ID,
		ArtifactName:    entry.ArtifactName,
		Version:         entry.Version,
		ParentVersionID: entry.ParentVersionID,
		Checksum:        checksum,
		CreatedAt:       entry.Timestamp,
		CreatedBy:       entry.UserID,
	}, nil
}

// ComputeChecksum returns the SHA256 hex digest of the content's
// canonical JSON encoding.
func ComputeChecksum(content Content) (string, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// BuildVersionChain orders artifact entries by version and verifies
// that each entry's parent pointer references the preceding version.
// Entries with a broken parent link are still included; the returned
// chain is ordered, the error reports the first inconsistency.
func BuildVersionChain(entries []*Entry) ([]*ArtifactVersion, error) {
	chain := make([]*ArtifactVersion, 0, len(entries))
	for _, entry := range entries {
		v, err := NewArtifactVersion(entry)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}

	sort.Slice(chain, func(i, j int) bool {
		return chain[i].Version < chain[j].Version
	})

	var firstErr error
	byID := make(map[string]*ArtifactVersion, len(chain))
	for _, v := range chain {
		byID[v.EntryID] = v
	}
	for _, v := range chain {
		if v.ParentVersionID == "" {
			continue
		}
		parent, ok := byID[v.ParentVersionID]
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("version %d of %s references missing parent %s", v.Version, v.ArtifactName, v.ParentVersionID)
			}
			continue
		}
		if parent.Version != v.Version-1 && firstErr == nil {
			firstErr = fmt.Errorf("version %d of %s has parent at version %d", v.Version, v.ArtifactName, parent.Version)
		}
	}

	return chain, firstErr
}
