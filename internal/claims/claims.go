package claims

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// ExtractedSection is one heading-delimited span of a document with the
// reason the extractor kept it.
type ExtractedSection struct {
	Heading   string `json:"heading"`
	Level     int    `json:"level"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
	Content   string `json:"content"`
	Reason    string `json:"reason,omitempty"`
}

// CharRange is a half-open [Start, End) span of the document
type CharRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// OwnerBlock is the structured ownership declaration found in a document
type OwnerBlock struct {
	Owner     string    `json:"owner"`
	Team      string    `json:"team,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Reviewers []string  `json:"reviewers,omitempty"`
	Range     CharRange `json:"range"`
}

// DocClaims is the deterministic parse of a fetched document
type DocClaims struct {
	Sections          []ExtractedSection `json:"sections"`
	OwnerBlock        *OwnerBlock        `json:"owner_block,omitempty"`
	Outline           []string           `json:"outline"`
	FulltextSHA256    string             `json:"normalized_fulltext_sha256"`
	ManagedRegion     *CharRange         `json:"managed_region,omitempty"`
	AllowedEditRanges []CharRange        `json:"allowed_edit_ranges"`
}

// Managed-region markers, wire-exact, each on its own line
const (
	ManagedStartMarker = "<!-- DRIFT_AGENT_MANAGED_START -->"
	ManagedEndMarker   = "<!-- DRIFT_AGENT_MANAGED_END -->"
)

var (
	headingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)

	// The colon may sit inside or outside the closing bold markers:
	// "**Owner:** alice" and "**Owner**: alice" both parse.
	ownerLinePattern    = regexp.MustCompile(`(?mi)^\*{0,2}owner\*{0,2}\s*[:：]\*{0,2}\s*(\S.*?)\s*$`)
	teamLinePattern     = regexp.MustCompile(`(?mi)^\*{0,2}team\*{0,2}\s*[:：]\*{0,2}\s*(\S.*?)\s*$`)
	channelLinePattern  = regexp.MustCompile(`(?mi)^\*{0,2}channel\*{0,2}\s*[:：]\*{0,2}\s*(\S.*?)\s*$`)
	reviewerLinePattern = regexp.MustCompile(`(?mi)^\*{0,2}reviewers?\*{0,2}\s*[:：]\*{0,2}\s*(\S.*?)\s*$`)
)

// Extract parses a document into claims. The parse is pure: the same content
// always yields the same sections, outline and hash.
func Extract(content string) *DocClaims {
	c := &DocClaims{
		FulltextSHA256: NormalizedSHA256(content),
	}

	c.Sections = extractSections(content)
	for _, s := range c.Sections {
		c.Outline = append(c.Outline, s.Heading)
	}

	c.OwnerBlock = ParseOwnerBlock(content)
	c.ManagedRegion = findManagedRegion(content)

	// Allowed-edit ranges: the managed region when declared, otherwise the
	// owner block plus every matched section body.
	if c.ManagedRegion != nil {
		c.AllowedEditRanges = []CharRange{*c.ManagedRegion}
	} else {
		if c.OwnerBlock != nil {
			c.AllowedEditRanges = append(c.AllowedEditRanges, c.OwnerBlock.Range)
		}
		for _, s := range c.Sections {
			c.AllowedEditRanges = append(c.AllowedEditRanges, CharRange{Start: s.StartChar, End: s.EndChar})
		}
	}
	return c
}

func extractSections(content string) []ExtractedSection {
	locs := headingPattern.FindAllStringSubmatchIndex(content, -1)
	sections := make([]ExtractedSection, 0, len(locs))
	for i, loc := range locs {
		start := loc[0]
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections = append(sections, ExtractedSection{
			Heading:   content[loc[4]:loc[5]],
			Level:     loc[3] - loc[2],
			StartChar: start,
			EndChar:   end,
			Content:   content[start:end],
			Reason:    "heading",
		})
	}
	return sections
}

// ParseOwnerBlock finds the first contiguous run of owner metadata lines
func ParseOwnerBlock(content string) *OwnerBlock {
	ownerLoc := ownerLinePattern.FindStringSubmatchIndex(content)
	if ownerLoc == nil {
		return nil
	}

	b := &OwnerBlock{
		Owner: content[ownerLoc[2]:ownerLoc[3]],
		Range: CharRange{Start: ownerLoc[0], End: ownerLoc[1]},
	}

	// Sibling lines are only part of the block while they stay adjacent
	// (within the next few lines after the owner line).
	window := content[ownerLoc[1]:]
	if idx := blockEnd(window); idx > 0 {
		window = window[:idx]
	}
	if m := teamLinePattern.FindStringSubmatch(window); m != nil {
		b.Team = m[1]
	}
	if m := channelLinePattern.FindStringSubmatch(window); m != nil {
		b.Channel = m[1]
	}
	if m := reviewerLinePattern.FindStringSubmatch(window); m != nil {
		for _, r := range strings.Split(m[1], ",") {
			if r = strings.TrimSpace(r); r != "" {
				b.Reviewers = append(b.Reviewers, r)
			}
		}
	}

	end := ownerLoc[1]
	for _, re := range []*regexp.Regexp{teamLinePattern, channelLinePattern, reviewerLinePattern} {
		if loc := re.FindStringIndex(window); loc != nil && ownerLoc[1]+loc[1] > end {
			end = ownerLoc[1] + loc[1]
		}
	}
	b.Range.End = end
	return b
}

// blockEnd returns the offset of the first blank line, bounding the owner
// block to one paragraph.
func blockEnd(s string) int {
	if idx := strings.Index(s, "\n\n"); idx >= 0 {
		return idx
	}
	return -1
}

// Render writes an owner block back to its canonical textual form.
// ParseOwnerBlock(Render(b)) yields an equal block (modulo Range).
func (b *OwnerBlock) Render() string {
	var sb strings.Builder
	sb.WriteString("**Owner:** " + b.Owner + "\n")
	if b.Team != "" {
		sb.WriteString("**Team:** " + b.Team + "\n")
	}
	if b.Channel != "" {
		sb.WriteString("**Channel:** " + b.Channel + "\n")
	}
	if len(b.Reviewers) > 0 {
		sb.WriteString("**Reviewers:** " + strings.Join(b.Reviewers, ", ") + "\n")
	}
	return sb.String()
}

func findManagedRegion(content string) *CharRange {
	start := strings.Index(content, ManagedStartMarker)
	if start < 0 {
		return nil
	}
	bodyStart := start + len(ManagedStartMarker)
	endRel := strings.Index(content[bodyStart:], ManagedEndMarker)
	if endRel < 0 {
		return nil
	}
	return &CharRange{Start: bodyStart, End: bodyStart + endRel}
}

// NormalizedSHA256 hashes the document with line endings and trailing
// whitespace normalized, so cosmetic resaves do not read as revisions.
func NormalizedSHA256(content string) string {
	norm := strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(norm, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	norm = strings.TrimRight(strings.Join(lines, "\n"), "\n")
	h := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(h[:])
}
