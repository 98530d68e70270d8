package patch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docdrift/docdrift/internal/claims"
	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/llm"
	"github.com/docdrift/docdrift/internal/models"
)

// MaxAttempts bounds regeneration after validator rejections
const MaxAttempts = 3

const systemPrompt = `You update internal documentation to match reality.
You receive the drift evidence, the relevant document sections and the exact
character ranges you may edit. Rewrite only within those ranges. Keep the
document's tone and formatting. Never invent commands, owners or endpoints
that are not in the evidence. Respond with JSON only.`

var responseSchema = &llm.Schema{
	Type:     "object",
	Required: []string{"new_content", "summary"},
	Properties: map[string]*llm.Schema{
		"new_content": {Type: "string"},
		"summary":     {Type: "string"},
		"confidence":  {Type: "number"},
	},
}

type generatorResponse struct {
	NewContent string  `json:"new_content"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// Generator turns a planned patch into a concrete proposal via the LLM,
// re-prompting on validator rejection up to MaxAttempts.
type Generator struct {
	client *llm.Client
	logger *slog.Logger
}

func NewGenerator(client *llm.Client) *Generator {
	return &Generator{
		client: client,
		logger: slog.Default().With("component", "patch.generator"),
	}
}

// Generate produces a PatchProposal for the candidate. original is the full
// fetched document; docCtx the bounded slice the model sees.
func (g *Generator) Generate(ctx context.Context, c *models.DriftCandidate, bundle *models.EvidenceBundle, docCtx *claims.DocContext, docClaims *claims.DocClaims, original string, style models.PatchStyle) (*models.PatchProposal, error) {
	if !g.client.IsEnabled() {
		// Deterministic fallback: ownership updates and notes need no model
		return g.deterministic(c, bundle, docCtx, docClaims, original, style)
	}

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		prompt, err := buildPrompt(c, bundle, docCtx, style, lastErr)
		if err != nil {
			return nil, err
		}

		var resp generatorResponse
		err = g.client.CompleteJSON(ctx, llm.Request{
			SystemPrompt:   systemPrompt,
			UserPrompt:     prompt,
			ResponseSchema: responseSchema,
		}, &resp)
		if err != nil {
			if errors.CodeOf(err) == errors.CodeLLMSchemaValidation && attempt < MaxAttempts {
				lastErr = err
				continue
			}
			return nil, err
		}

		if err := Validate(original, resp.NewContent, docClaims); err != nil {
			g.logger.Warn("generated patch rejected",
				"drift_id", c.ID,
				"attempt", attempt,
				"reason", err,
			)
			lastErr = err
			continue
		}

		return buildProposal(c, docCtx, original, resp.NewContent, style, resp.Confidence), nil
	}

	return nil, errors.Wrap(errors.CodeLLMSchemaValidation,
		fmt.Sprintf("patch generation failed after %d attempts", MaxAttempts), lastErr)
}

// deterministic covers the styles that never need a model
func (g *Generator) deterministic(c *models.DriftCandidate, bundle *models.EvidenceBundle, docCtx *claims.DocContext, docClaims *claims.DocClaims, original string, style models.PatchStyle) (*models.PatchProposal, error) {
	var proposed string

	switch style {
	case models.StyleUpdateOwnerBlock, models.StyleUpdateOwner:
		if docClaims.OwnerBlock == nil || c.OwnerResolution == nil {
			return nil, errors.New(errors.CodeInternal, "no owner block or resolution for deterministic owner update")
		}
		updated := *docClaims.OwnerBlock
		updated.Owner = c.OwnerResolution.OwnerRef
		if c.OwnerResolution.TeamChannel != "" {
			updated.Channel = c.OwnerResolution.TeamChannel
		}
		r := docClaims.OwnerBlock.Range
		proposed = original[:r.Start] + strings.TrimRight(updated.Render(), "\n") + original[r.End:]

	case models.StyleAddNote, models.StyleAddSection:
		note := renderNote(c, bundle, style)
		proposed = insertInAllowedRange(original, docClaims, note)

	default:
		return nil, errors.Newf(errors.CodeInternal, "style %s requires the llm provider", style)
	}

	if err := Validate(original, proposed, docClaims); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "deterministic patch failed validation", err)
	}
	return buildProposal(c, docCtx, original, proposed, style, 0.9), nil
}

func renderNote(c *models.DriftCandidate, bundle *models.EvidenceBundle, style models.PatchStyle) string {
	var sb strings.Builder
	if style == models.StyleAddSection {
		sb.WriteString("\n## Needs review\n\n")
	} else {
		sb.WriteString("\n> **Note:** ")
	}
	sb.WriteString("This document may be out of date.\n")
	if c.ComparisonResult != nil {
		for _, conflict := range c.ComparisonResult.Conflicts {
			sb.WriteString("- " + conflict + "\n")
		}
		for _, gap := range c.ComparisonResult.CoverageGaps {
			sb.WriteString("- Not covered: " + gap + "\n")
		}
	}
	return sb.String()
}

// insertInAllowedRange appends the note at the end of the widest allowed
// range so the edit always validates.
func insertInAllowedRange(original string, docClaims *claims.DocClaims, note string) string {
	if len(docClaims.AllowedEditRanges) == 0 {
		return original
	}
	widest := docClaims.AllowedEditRanges[0]
	for _, r := range docClaims.AllowedEditRanges[1:] {
		if r.End-r.Start > widest.End-widest.Start {
			widest = r
		}
	}
	return original[:widest.End] + note + original[widest.End:]
}

func buildPrompt(c *models.DriftCandidate, bundle *models.EvidenceBundle, docCtx *claims.DocContext, style models.PatchStyle, lastErr error) (string, error) {
	payload := map[string]any{
		"drift_type":  c.DriftType,
		"patch_style": style,
		"comparison":  c.ComparisonResult,
		"doc_context": docCtx,
	}
	if bundle != nil && bundle.SourceEvidence != nil {
		payload["source_artifacts"] = bundle.SourceEvidence.Artifacts
		payload["source_excerpt"] = bundle.SourceEvidence.Excerpt
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt payload: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Update the document per this evidence. Return the complete new document content.\n\n")
	sb.Write(data)
	if lastErr != nil {
		sb.WriteString("\n\nYour previous attempt was rejected: ")
		sb.WriteString(lastErr.Error())
		sb.WriteString("\nStay strictly inside allowed_edit_ranges this time.")
	}
	return sb.String(), nil
}

func buildProposal(c *models.DriftCandidate, docCtx *claims.DocContext, original, proposed string, style models.PatchStyle, confidence float64) *models.PatchProposal {
	if confidence == 0 {
		confidence = c.Confidence
	}
	return &models.PatchProposal{
		WorkspaceID:     c.WorkspaceID,
		ID:              uuid.NewString(),
		DriftID:         c.ID,
		DocRef:          docCtx.DocRef,
		BaseRevision:    docCtx.BaseRevision,
		ProposedContent: proposed,
		Diff:            Render(docCtx.DocRef.Path, ComputeHunks(original, proposed)),
		Style:           style,
		Confidence:      confidence,
		Status:          models.ProposalPending,
		CreatedAt:       time.Now().UTC(),
	}
}
