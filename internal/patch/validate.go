package patch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docdrift/docdrift/internal/claims"
)

// Validators reject generated content the pipeline must never write:
// edits outside the allowed ranges, lost managed-region markers, and
// secret-looking additions.

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`ghp_[0-9A-Za-z]{36}`),
	regexp.MustCompile(`github_pat_[0-9A-Za-z_]{22,}`),
	regexp.MustCompile(`xox[baprs]-[0-9A-Za-z-]{10,}`),
	regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)(?:api[_-]?key|secret|password|token)\s*[:=]\s*["'][^"']{12,}["']`),
}

// Validate checks a proposed full-document rewrite against the claims of
// the fetched original. A nil return means the patch is safe to propose.
func Validate(original, proposed string, docClaims *claims.DocClaims) error {
	if proposed == original {
		return fmt.Errorf("patch changes nothing")
	}

	if err := checkEditRanges(original, proposed, docClaims.AllowedEditRanges); err != nil {
		return err
	}
	if err := checkManagedMarkers(original, proposed); err != nil {
		return err
	}
	if err := checkSecrets(original, proposed); err != nil {
		return err
	}
	return nil
}

func checkEditRanges(original, proposed string, allowed []claims.CharRange) error {
	if len(allowed) == 0 {
		return fmt.Errorf("document has no allowed edit ranges")
	}
	start, end := changedCharRange(original, proposed)
	for _, r := range allowed {
		if start >= r.Start && end <= r.End {
			return nil
		}
	}
	return fmt.Errorf("edit spans [%d,%d) outside every allowed range", start, end)
}

func checkManagedMarkers(original, proposed string) error {
	origStarts := strings.Count(original, claims.ManagedStartMarker)
	origEnds := strings.Count(original, claims.ManagedEndMarker)
	if strings.Count(proposed, claims.ManagedStartMarker) != origStarts ||
		strings.Count(proposed, claims.ManagedEndMarker) != origEnds {
		return fmt.Errorf("managed-region markers were added or removed")
	}
	return nil
}

// checkSecrets flags secret-like content the proposal introduces. Secrets
// already present in the original do not block (the patch did not add them).
func checkSecrets(original, proposed string) error {
	for _, re := range secretPatterns {
		origCount := len(re.FindAllString(original, -1))
		propCount := len(re.FindAllString(proposed, -1))
		if propCount > origCount {
			return fmt.Errorf("patch introduces secret-like content")
		}
	}
	return nil
}
