package policy

// Translate auto-enhances legacy comparator-based obligations with an
// equivalent fact condition where a deterministic translation exists.
// Obligations that already carry conditions are left alone; comparators with
// no deterministic equivalent stay comparator-only.
func Translate(pack *PolicyPack) {
	for ri := range pack.Rules {
		for oi := range pack.Rules[ri].Obligations {
			ob := &pack.Rules[ri].Obligations[oi]
			if ob.Conditions != nil || ob.ComparatorID == "" {
				continue
			}
			if cond := conditionFor(ob); cond != nil {
				ob.Conditions = cond
			}
		}
	}
}

func conditionFor(ob *Obligation) *Condition {
	switch ob.ComparatorID {
	case "min_approvals":
		count := paramInt(ob.Params, "count", 1)
		return &Condition{Fact: "pr.approvals.count", Operator: ">=", Value: count}

	case "changed_path_matches":
		patterns := toStrings(ob.Params["patterns"])
		if single := paramString(ob.Params, "pattern"); single != "" {
			patterns = append(patterns, single)
		}
		if len(patterns) == 0 {
			return nil
		}
		if len(patterns) == 1 {
			return &Condition{Fact: "diff.filesChanged.paths", Operator: "contains", Value: patterns[0]}
		}
		children := make([]*Condition, 0, len(patterns))
		for _, p := range patterns {
			children = append(children, &Condition{Fact: "diff.filesChanged.paths", Operator: "contains", Value: p})
		}
		return &Condition{Or: children}

	case "pr_template_field_present":
		field := paramString(ob.Params, "field")
		if field == "" {
			return nil
		}
		return &Condition{Fact: "pr.body", Operator: "contains", Value: field}

	case "actor_is_agent":
		return &Condition{Fact: "actor.isAgent", Operator: "==", Value: true}
	}
	return nil
}
