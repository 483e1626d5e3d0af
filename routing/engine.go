package routing

import "github.com/artemis-registry/artemis/model"

// Engine applies a RouteRule to a candidate instance list. It owns the
// long-lived strategy state (the WeightedRoundRobin counters in
// particular) so that repeated Apply calls against the same rule observe
// a consistent, advancing position.
type Engine struct {
	wrr      *WeightedRoundRobin
	closeBy  *CloseByVisit
}

// NewEngine returns an Engine with fresh strategy state.
func NewEngine() *Engine {
	return &Engine{wrr: NewWeightedRoundRobin(), closeBy: NewCloseByVisit()}
}

// Apply selects a single target group via the rule's strategy, then
// retains only instances whose Group field equals that group ID. An
// empty rule.Groups list leaves instances unchanged. If the selected
// group yields zero instances, the engine falls back to returning the
// full, unfiltered input — availability over precision.
func (e *Engine) Apply(instances []model.Instance, rule model.RouteRule, ctx model.RouteContext) []model.Instance {
	if len(rule.Groups) == 0 {
		return instances
	}

	var groupID string
	var ok bool
	switch rule.Strategy {
	case model.StrategyCloseByVisit:
		groupID, ok = e.closeBy.Select(rule.Groups, ctx)
	default:
		groupID, ok = e.wrr.SelectForRule(rule.RuleID, rule.Groups)
	}
	if !ok {
		return instances
	}

	var filtered []model.Instance
	for _, inst := range instances {
		if inst.Group == groupID {
			filtered = append(filtered, inst)
		}
	}
	if len(filtered) == 0 {
		return instances
	}
	return filtered
}
