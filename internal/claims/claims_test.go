package claims

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runbookDoc = `# Payments Runbook

**Owner:** alice
**Team:** payments
**Channel:** #payments-oncall
**Reviewers:** bob, carol

## Deploy

Run make deploy from the repo root.

## Rollback

Run make rollback.
`

func TestExtractSections(t *testing.T) {
	c := Extract(runbookDoc)

	require.Len(t, c.Sections, 3)
	assert.Equal(t, "Payments Runbook", c.Sections[0].Heading)
	assert.Equal(t, 1, c.Sections[0].Level)
	assert.Equal(t, "Deploy", c.Sections[1].Heading)
	assert.Equal(t, 2, c.Sections[1].Level)
	assert.Equal(t, []string{"Payments Runbook", "Deploy", "Rollback"}, c.Outline)

	// Section spans tile the document from the first heading on
	assert.Equal(t, 0, c.Sections[0].StartChar)
	assert.Equal(t, c.Sections[0].EndChar, c.Sections[1].StartChar)
	assert.Equal(t, len(runbookDoc), c.Sections[2].EndChar)
}

func TestExtractOwnerBlock(t *testing.T) {
	c := Extract(runbookDoc)

	require.NotNil(t, c.OwnerBlock)
	assert.Equal(t, "alice", c.OwnerBlock.Owner)
	assert.Equal(t, "payments", c.OwnerBlock.Team)
	assert.Equal(t, "#payments-oncall", c.OwnerBlock.Channel)
	assert.Equal(t, []string{"bob", "carol"}, c.OwnerBlock.Reviewers)
}

func TestOwnerBlockRenderRoundTrip(t *testing.T) {
	b := &OwnerBlock{
		Owner:     "alice",
		Team:      "payments",
		Channel:   "#payments-oncall",
		Reviewers: []string{"bob", "carol"},
	}
	parsed := ParseOwnerBlock(b.Render())
	require.NotNil(t, parsed)
	assert.Equal(t, b.Owner, parsed.Owner)
	assert.Equal(t, b.Team, parsed.Team)
	assert.Equal(t, b.Channel, parsed.Channel)
	assert.Equal(t, b.Reviewers, parsed.Reviewers)
}

func TestOwnerBlockColonPlacementVariants(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"colon inside bold", "**Owner:** alice\n**Team:** payments\n"},
		{"colon outside bold", "**Owner**: alice\n**Team**: payments\n"},
		{"no markup", "Owner: alice\nTeam: payments\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ParseOwnerBlock(tt.doc)
			require.NotNil(t, b)
			assert.Equal(t, "alice", b.Owner)
			assert.Equal(t, "payments", b.Team)
		})
	}
}

func TestOwnerBlockBoundedByBlankLine(t *testing.T) {
	doc := "**Owner:** alice\nSome prose.\n\n**Team:** unrelated\n"
	b := ParseOwnerBlock(doc)
	require.NotNil(t, b)
	assert.Equal(t, "alice", b.Owner)
	assert.Empty(t, b.Team, "team line in a later paragraph is not part of the block")
}

func TestExtractManagedRegion(t *testing.T) {
	doc := "# Doc\n\nintro\n\n" + ManagedStartMarker + "\ngenerated part\n" + ManagedEndMarker + "\n\noutro\n"
	c := Extract(doc)

	require.NotNil(t, c.ManagedRegion)
	body := doc[c.ManagedRegion.Start:c.ManagedRegion.End]
	assert.Equal(t, "\ngenerated part\n", body)

	// A declared managed region is the only editable span
	require.Len(t, c.AllowedEditRanges, 1)
	assert.Equal(t, *c.ManagedRegion, c.AllowedEditRanges[0])
}

func TestExtractUnclosedManagedRegionIgnored(t *testing.T) {
	doc := "# Doc\n" + ManagedStartMarker + "\nno end marker\n"
	c := Extract(doc)
	assert.Nil(t, c.ManagedRegion)
}

func TestNormalizedSHA256(t *testing.T) {
	base := "# Doc\n\nline one\nline two\n"
	variants := []string{
		"# Doc\r\n\r\nline one\r\nline two\r\n",
		"# Doc\n\nline one   \nline two\t\n",
		"# Doc\n\nline one\nline two\n\n\n",
	}
	want := NormalizedSHA256(base)
	for _, v := range variants {
		assert.Equal(t, want, NormalizedSHA256(v))
	}
	assert.NotEqual(t, want, NormalizedSHA256("# Doc\n\nline one\nline 2\n"))
}

func TestExtractDeterministic(t *testing.T) {
	a := Extract(runbookDoc)
	b := Extract(runbookDoc)
	assert.Equal(t, a.FulltextSHA256, b.FulltextSHA256)
	assert.Equal(t, a.Outline, b.Outline)
	assert.Equal(t, a.AllowedEditRanges, b.AllowedEditRanges)
}

func TestExtractNoHeadings(t *testing.T) {
	c := Extract("just a paragraph of prose with no structure\n")
	assert.Empty(t, c.Sections)
	assert.Empty(t, c.Outline)
	assert.False(t, strings.Contains(c.FulltextSHA256, " "))
}
