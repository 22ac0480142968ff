package analyzer

import "sync"

type Direction string

const (
	DirectionOut Direction = "out"
	DirectionIn  Direction = "in"
)

type breachKey struct {
	rule      string
	direction Direction
}

// BreachTracker counts consecutive evaluation ticks a rule's condition has
// held in one direction.
type BreachTracker struct {
	counts map[breachKey]int
	mu     sync.Mutex
}

func NewBreachTracker() *BreachTracker {
	return &BreachTracker{
		counts: make(map[breachKey]int),
	}
}

// Observe records one tick and returns the current consecutive count. A
// non-breaching tick resets the counter to zero.
func (t *BreachTracker) Observe(rule string, dir Direction, breaching bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := breachKey{rule: rule, direction: dir}
	if !breaching {
		delete(t.counts, key)
		return 0
	}
	t.counts[key]++
	return t.counts[key]
}

func (t *BreachTracker) Count(rule string, dir Direction) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[breachKey{rule: rule, direction: dir}]
}

// Reset clears both directions of a rule, typically after it fired.
func (t *BreachTracker) Reset(rule string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.counts, breachKey{rule: rule, direction: DirectionOut})
	delete(t.counts, breachKey{rule: rule, direction: DirectionIn})
}
