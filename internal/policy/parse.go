package policy

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/docdrift/docdrift/internal/errors"
)

// Parse decodes and validates a policy pack from YAML.
// Structural problems fail with POLICY_PACK_VALIDATION.
func Parse(data []byte) (*PolicyPack, error) {
	var pack PolicyPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, errors.Wrap(errors.CodePolicyPackValidation, "policy pack YAML is not parseable", err)
	}
	if err := ValidatePack(&pack); err != nil {
		return nil, err
	}
	return &pack, nil
}

// ValidatePack enforces the structural invariants of a pack
func ValidatePack(pack *PolicyPack) error {
	fail := func(format string, args ...any) error {
		return errors.Newf(errors.CodePolicyPackValidation, format, args...)
	}

	if pack.Metadata.ID == "" {
		return fail("metadata.id is required")
	}
	if pack.Metadata.Version == "" {
		return fail("metadata.version is required")
	}
	switch pack.Metadata.ScopeMergeStrategy {
	case MergeMostRestrictive, MergeHighestPriority, MergeExplicit, "":
	default:
		return fail("pack %s: unknown scopeMergeStrategy %q", pack.Metadata.ID, pack.Metadata.ScopeMergeStrategy)
	}

	seen := make(map[string]bool, len(pack.Rules))
	for i, r := range pack.Rules {
		if r.ID == "" {
			return fail("pack %s: rules[%d] has no id", pack.Metadata.ID, i)
		}
		if seen[r.ID] {
			return fail("pack %s: duplicate rule id %q", pack.Metadata.ID, r.ID)
		}
		seen[r.ID] = true

		if !r.Trigger.Always && len(r.Trigger.AnyChangedPaths) == 0 && len(r.Trigger.AllChangedPaths) == 0 {
			return fail("pack %s: rule %s has an empty trigger", pack.Metadata.ID, r.ID)
		}
		if len(r.Obligations) == 0 {
			return fail("pack %s: rule %s has no obligations", pack.Metadata.ID, r.ID)
		}
		for j, o := range r.Obligations {
			if o.ComparatorID == "" && o.Conditions == nil {
				return fail("pack %s: rule %s obligations[%d] needs a comparatorId or conditions", pack.Metadata.ID, r.ID, j)
			}
			switch o.DecisionOnFail {
			case DecisionBlock, DecisionWarn, DecisionPass:
			default:
				return fail("pack %s: rule %s obligations[%d]: decisionOnFail must be block, warn or pass", pack.Metadata.ID, r.ID, j)
			}
			if o.Conditions != nil {
				if err := validateCondition(o.Conditions); err != nil {
					return fail("pack %s: rule %s obligations[%d]: %v", pack.Metadata.ID, r.ID, j, err)
				}
			}
		}
	}
	return nil
}

func validateCondition(c *Condition) error {
	composite := 0
	if len(c.And) > 0 {
		composite++
	}
	if len(c.Or) > 0 {
		composite++
	}
	if c.Not != nil {
		composite++
	}

	if composite > 1 {
		return fmt.Errorf("condition mixes and/or/not at one level")
	}
	if composite == 1 {
		if c.Fact != "" || c.Operator != "" {
			return fmt.Errorf("composite condition must not carry fact/operator")
		}
		for _, child := range c.And {
			if err := validateCondition(child); err != nil {
				return err
			}
		}
		for _, child := range c.Or {
			if err := validateCondition(child); err != nil {
				return err
			}
		}
		if c.Not != nil {
			return validateCondition(c.Not)
		}
		return nil
	}

	if c.Fact == "" {
		return fmt.Errorf("leaf condition missing fact")
	}
	if !knownOperator(c.Operator) {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	return nil
}
