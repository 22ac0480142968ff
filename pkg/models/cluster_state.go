package models

import "time"

// ClusterState is the evaluator's view of a cluster. It is only mutated by
// applied scaling decisions.
type ClusterState struct {
	ClusterID       string               `json:"cluster_id"`
	Capacity        int                  `json:"capacity"`
	MinCapacity     int                  `json:"min_capacity"`
	MaxCapacity     int                  `json:"max_capacity"`
	LastScaleTime   *time.Time           `json:"last_scale_time,omitempty"`
	LastScaleAction ScalingAction        `json:"last_scale_action,omitempty"`
	LastRule        string               `json:"last_rule,omitempty"`
	WarmupUntil     time.Time            `json:"warmup_until,omitempty"`
	CooldownUntil   map[string]time.Time `json:"cooldown_until,omitempty"`
}

func NewClusterState(clusterID string, capacity, minCapacity, maxCapacity int) ClusterState {
	cs := ClusterState{
		ClusterID:     clusterID,
		MinCapacity:   minCapacity,
		MaxCapacity:   maxCapacity,
		CooldownUntil: make(map[string]time.Time),
	}
	cs.Capacity = cs.Clamp(capacity)
	return cs
}

// Clamp bounds n to [MinCapacity, MaxCapacity].
func (cs ClusterState) Clamp(n int) int {
	if n < cs.MinCapacity {
		return cs.MinCapacity
	}
	if n > cs.MaxCapacity {
		return cs.MaxCapacity
	}
	return n
}

func (cs ClusterState) InWarmup(now time.Time) bool {
	return now.Before(cs.WarmupUntil)
}

func (cs ClusterState) InCooldown(rule string, now time.Time) bool {
	until, ok := cs.CooldownUntil[rule]
	return ok && now.Before(until)
}

func (cs ClusterState) CanScaleOut() bool {
	return cs.Capacity < cs.MaxCapacity
}

func (cs ClusterState) CanScaleIn() bool {
	return cs.Capacity > cs.MinCapacity
}

// Clone returns a deep copy safe to hand out to readers.
func (cs ClusterState) Clone() ClusterState {
	out := cs
	if cs.LastScaleTime != nil {
		t := *cs.LastScaleTime
		out.LastScaleTime = &t
	}
	out.CooldownUntil = make(map[string]time.Time, len(cs.CooldownUntil))
	for k, v := range cs.CooldownUntil {
		out.CooldownUntil[k] = v
	}
	return out
}
