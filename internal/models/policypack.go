package models

import "time"

// PackStatus is the publication state of a policy pack
type PackStatus string

const (
	PackDraft     PackStatus = "draft"
	PackPublished PackStatus = "published"
	PackArchived  PackStatus = "archived"
)

// PolicyPackRecord is the stored, versioned policy pack. The YAML body is
// kept verbatim; VersionHash is the canonical hash of its parsed form.
// Published packs are immutable: edits create a child row via ParentID.
type PolicyPackRecord struct {
	WorkspaceID    string     `json:"workspace_id" db:"workspace_id"`
	ID             string     `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	ScopeType      string     `json:"scope_type" db:"scope_type"` // workspace | service | repo
	ScopeValue     string     `json:"scope_value,omitempty" db:"scope_value"`
	YAML           string     `json:"yaml" db:"yaml"`
	VersionHash    string     `json:"version_hash" db:"version_hash"` // full 64 hex chars
	ParentID       string     `json:"parent_id,omitempty" db:"parent_id"`
	PackMetadataID string     `json:"pack_metadata_id,omitempty" db:"pack_metadata_id"`
	Status         PackStatus `json:"status" db:"status"`
	PublishedAt    *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// ShortHash returns the 16-char display form of the version hash
func (p *PolicyPackRecord) ShortHash() string {
	if len(p.VersionHash) >= 16 {
		return p.VersionHash[:16]
	}
	return p.VersionHash
}
