package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/docdrift/docdrift/internal/models"
)

// Fingerprints hash normalized evidence tokens at three granularities so a
// human rejection can suppress recurrences without silencing the whole
// source. strict covers the exact token set, medium the first ten tokens in
// sorted order (a stable subset, not a significance ranking), broad only the
// target surface. Each hash is tagged with its level so the three never
// collide even when the token set is small.

const prefixLen = 32 // hex chars kept from the sha256

var (
	envSuffixPattern = regexp.MustCompile(`[-_](?:prod|production|staging|stage|dev|development|test|qa|preview)\b`)
	portPattern      = regexp.MustCompile(`\b\d{2,5}\b`)
	versionPattern   = regexp.MustCompile(`\bv?\d+\.\d+(?:\.\d+)?(?:-[0-9a-z.-]+)?\b`)
)

var toolAliases = map[string]string{
	"kubectl": "k8s_tool",
	"helm":    "k8s_tool",
	"docker":  "container_tool",
	"podman":  "container_tool",
}

// NormalizeToken collapses environment suffixes, tool aliases, ports and
// versions so that cosmetic variants of the same drift hash identically.
func NormalizeToken(tok string) string {
	t := strings.ToLower(strings.TrimSpace(tok))
	if alias, ok := toolAliases[t]; ok {
		return alias
	}
	for word, alias := range toolAliases {
		if strings.HasPrefix(t, word+" ") {
			t = alias + t[len(word):]
			break
		}
	}
	t = envSuffixPattern.ReplaceAllString(t, "")
	t = versionPattern.ReplaceAllString(t, "<version>")
	t = portPattern.ReplaceAllString(t, "<port>")
	return t
}

func normalizeAll(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		n := NormalizeToken(tok)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func hash(parts []string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(h[:])[:prefixLen]
}

// Compute derives the three fingerprints for a candidate.
// target is the resolved document ref rendered as a string; targetSurface is
// the coarser doc-system plus service scope used by the broad level.
func Compute(source models.SourceType, target, targetSurface string, driftType models.DriftType, artifacts *models.BaselineArtifacts) models.Fingerprints {
	tokens := normalizeAll(artifacts.AllTokens())

	top := tokens
	if len(top) > 10 {
		top = top[:10]
	}

	base := []string{string(source), target, string(driftType)}
	return models.Fingerprints{
		Strict: hash(append(append([]string{"strict"}, base...), tokens...)),
		Medium: hash(append(append([]string{"medium"}, base...), top...)),
		Broad:  hash([]string{"broad", string(source), targetSurface, string(driftType)}),
	}
}
