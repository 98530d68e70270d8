package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basePackYAML = `
metadata:
  id: pack-core
  name: Core docs policy
  version: "1.2.0"
  tags: [docs, drift]
  scopePriority: 10
  scopeMergeStrategy: MOST_RESTRICTIVE
scope:
  type: workspace
  branches:
    include: [main, release/*]
rules:
  - id: readme-fresh
    trigger:
      anyChangedPaths: ["cmd/**", "internal/**"]
    obligations:
      - comparatorId: readme_commands
        decisionOnFail: warn
  - id: api-docs
    trigger:
      anyChangedPaths: ["api/**"]
    obligations:
      - comparatorId: openapi_sync
        decisionOnFail: block
`

func TestHashIdempotent(t *testing.T) {
	pack, err := Parse([]byte(basePackYAML))
	require.NoError(t, err)

	h1, err := Hash(pack)
	require.NoError(t, err)
	h2, err := Hash(pack)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashIgnoresFormattingAndSetOrder(t *testing.T) {
	// Same pack: different YAML formatting, tag order and branch order.
	reordered := `
metadata:
  scopeMergeStrategy: MOST_RESTRICTIVE
  scopePriority: 10
  version: "1.2.0"
  tags: [drift, docs]
  name: Core docs policy
  id: pack-core
scope:
  branches:
    include: ["release/*", main]
  type: workspace
rules:
  - id: readme-fresh
    trigger:
      anyChangedPaths: ["cmd/**", "internal/**"]
    obligations:
      - comparatorId: readme_commands
        decisionOnFail: warn
  - id: api-docs
    trigger:
      anyChangedPaths: ["api/**"]
    obligations:
      - comparatorId: openapi_sync
        decisionOnFail: block
`
	a, err := Parse([]byte(basePackYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(reordered))
	require.NoError(t, err)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb, "set-like list order and key order must not change the hash")
}

func TestHashRuleOrderIsSemantic(t *testing.T) {
	swapped := `
metadata:
  id: pack-core
  name: Core docs policy
  version: "1.2.0"
  tags: [docs, drift]
  scopePriority: 10
  scopeMergeStrategy: MOST_RESTRICTIVE
scope:
  type: workspace
  branches:
    include: [main, release/*]
rules:
  - id: api-docs
    trigger:
      anyChangedPaths: ["api/**"]
    obligations:
      - comparatorId: openapi_sync
        decisionOnFail: block
  - id: readme-fresh
    trigger:
      anyChangedPaths: ["cmd/**", "internal/**"]
    obligations:
      - comparatorId: readme_commands
        decisionOnFail: warn
`
	a, err := Parse([]byte(basePackYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(swapped))
	require.NoError(t, err)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb, "rule order is author-ordered and must affect the hash")
}

func TestHashSemanticChange(t *testing.T) {
	a, err := Parse([]byte(basePackYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(basePackYAML))
	require.NoError(t, err)
	b.Rules[0].Obligations[0].DecisionOnFail = DecisionBlock

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestShortHash(t *testing.T) {
	full := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	assert.Equal(t, "0123456789abcdef", ShortHash(full))
	assert.Equal(t, "short", ShortHash("short"))
}

func TestDiffHashes(t *testing.T) {
	a := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	b := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	assert.Contains(t, DiffHashes(a, a), "identical")
	assert.Equal(t, "aaaaaaaaaaaaaaaa -> bbbbbbbbbbbbbbbb", DiffHashes(a, b))
}
