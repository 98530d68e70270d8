package claims

import (
	"github.com/docdrift/docdrift/internal/models"
)

// Budgets bound the document slice handed to the patch generator
type Budgets struct {
	MaxDocChars     int
	MaxSections     int
	MaxSectionChars int
}

// DocContext is the bounded, deterministic slice of a document given to the
// patch generator. Building it twice from the same inputs yields the same
// context.
type DocContext struct {
	DocRef            models.DocRef             `json:"doc_ref"`
	BaseRevision      string                    `json:"base_revision"`
	Sections          []ExtractedSection        `json:"sections"`
	OwnerBlock        *OwnerBlock               `json:"owner_block,omitempty"`
	Outline           []string                  `json:"outline"`
	AllowedEditRanges []CharRange               `json:"allowed_edit_ranges"`
	Artifacts         *models.BaselineArtifacts `json:"artifacts,omitempty"`
	TotalChars        int                       `json:"total_chars"`
}

// BuildContext trims the parsed claims down to the configured budgets.
// Sections are kept in document order; each is truncated to MaxSectionChars
// and the running total stops at MaxDocChars.
func BuildContext(ref models.DocRef, revision string, c *DocClaims, targetArtifacts *models.BaselineArtifacts, b Budgets) *DocContext {
	ctx := &DocContext{
		DocRef:            ref,
		BaseRevision:      revision,
		OwnerBlock:        c.OwnerBlock,
		Outline:           c.Outline,
		AllowedEditRanges: c.AllowedEditRanges,
		Artifacts:         targetArtifacts,
	}

	total := 0
	for _, s := range c.Sections {
		if b.MaxSections > 0 && len(ctx.Sections) >= b.MaxSections {
			break
		}
		content := s.Content
		if b.MaxSectionChars > 0 && len(content) > b.MaxSectionChars {
			content = content[:b.MaxSectionChars]
		}
		if b.MaxDocChars > 0 && total+len(content) > b.MaxDocChars {
			break
		}
		total += len(content)
		trimmed := s
		trimmed.Content = content
		ctx.Sections = append(ctx.Sections, trimmed)
	}
	ctx.TotalChars = total
	return ctx
}
