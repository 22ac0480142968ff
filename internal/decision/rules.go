package decision

import (
	"fmt"
	"math"
	"sort"

	"github.com/OldStager01/imagizer-autoscaler/internal/analyzer"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

// sortRules orders rules by ascending priority. Ties keep declaration
// order.
func sortRules(rules []models.ScalingRule) []models.ScalingRule {
	sorted := make([]models.ScalingRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// proposeDelta maps an observed value to a signed capacity change.
func proposeDelta(rule models.ScalingRule, value float64, capacity int) (int, string) {
	if rule.TargetTracking != nil {
		return targetTrackingDelta(rule, value, capacity)
	}
	if rule.Step == nil {
		return 0, ""
	}

	if out := rule.Step.ScaleOut; out != nil && value > out.Threshold {
		return out.Step, fmt.Sprintf("%s %s %.2f > %.2f",
			rule.Metric, rule.Statistic, value, out.Threshold)
	}
	if in := rule.Step.ScaleIn; in != nil && value < in.Threshold {
		return -in.Step, fmt.Sprintf("%s %s %.2f < %.2f",
			rule.Metric, rule.Statistic, value, in.Threshold)
	}
	return 0, ""
}

func targetTrackingDelta(rule models.ScalingRule, value float64, capacity int) (int, string) {
	tt := rule.TargetTracking
	if capacity <= 0 {
		return 0, ""
	}

	desired := int(math.Ceil(float64(capacity) * value / tt.TargetValue))
	delta := desired - capacity
	if delta < 0 && tt.DisableScaleIn {
		return 0, ""
	}
	if delta == 0 {
		return 0, ""
	}

	return delta, fmt.Sprintf("%s %s %.2f tracking target %.2f",
		rule.Metric, rule.Statistic, value, tt.TargetValue)
}

func direction(delta int) analyzer.Direction {
	if delta < 0 {
		return analyzer.DirectionIn
	}
	return analyzer.DirectionOut
}

func opposite(dir analyzer.Direction) analyzer.Direction {
	if dir == analyzer.DirectionIn {
		return analyzer.DirectionOut
	}
	return analyzer.DirectionIn
}
