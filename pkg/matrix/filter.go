package matrix

// Applicable returns the combinations that should run for the given target,
// in declaration order. The rule is a pure function of the target and each
// combination's tags: a combination tagged requires-cross is excluded when
// the target equals the plan's native target. Unknown tags are inert.
func (p *Plan) Applicable(target Target) []Combination {
	result := make([]Combination, 0, len(p.Combinations))
	for _, comb := range p.Combinations {
		if p.excluded(target, comb) {
			continue
		}
		result = append(result, comb)
	}
	return result
}

func (p *Plan) excluded(target Target, comb Combination) bool {
	if p.NativeTarget == "" {
		return false
	}
	return comb.HasTag(TagRequiresCross) && target == p.NativeTarget
}
