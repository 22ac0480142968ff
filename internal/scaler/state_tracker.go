package scaler

import (
	"sort"
	"sync"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

type StateTracker struct {
	instances map[string]*models.Instance
	clusters  map[string][]string // clusterID -> []instanceID
	desired   map[string]int
	mu        sync.RWMutex
	callbacks StateCallbacks
}

type StateCallbacks struct {
	OnInstanceInService  func(instance models.Instance)
	OnInstanceTerminated func(instance models.Instance)
	OnStateChanged       func(instance models.Instance, from, to models.InstanceState)
}

func NewStateTracker(callbacks StateCallbacks) *StateTracker {
	return &StateTracker{
		instances: make(map[string]*models.Instance),
		clusters:  make(map[string][]string),
		desired:   make(map[string]int),
		callbacks: callbacks,
	}
}

func (t *StateTracker) AddInstance(instance *models.Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.instances[instance.ID] = instance
	t.clusters[instance.ClusterID] = append(t.clusters[instance.ClusterID], instance.ID)

	logger.WithCluster(instance.ClusterID).Debugf("Instance %s added in state %s", instance.ID, instance.State)
}

func (t *StateTracker) SetDesired(clusterID string, desired int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.desired[clusterID] = desired
}

func (t *StateTracker) Desired(clusterID string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.desired[clusterID]
	return d, ok
}

func (t *StateTracker) UpdateState(instanceID string, newState models.InstanceState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	instance, exists := t.instances[instanceID]
	if !exists {
		return ErrInstanceUnknown
	}

	oldState := instance.State
	if oldState == newState {
		return nil
	}

	switch newState {
	case models.InstanceInService:
		instance.MarkInService()
		if t.callbacks.OnInstanceInService != nil {
			go t.callbacks.OnInstanceInService(*instance)
		}
	case models.InstanceTerminating:
		instance.MarkTerminating()
	case models.InstanceTerminated:
		instance.MarkTerminated()
		if t.callbacks.OnInstanceTerminated != nil {
			go t.callbacks.OnInstanceTerminated(*instance)
		}
	default:
		instance.State = newState
	}

	if t.callbacks.OnStateChanged != nil {
		go t.callbacks.OnStateChanged(*instance, oldState, newState)
	}

	logger.WithCluster(instance.ClusterID).Debugf(
		"Instance %s state changed: %s -> %s", instanceID, oldState, newState,
	)

	return nil
}

func (t *StateTracker) GetInstance(instanceID string) (models.Instance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	instance, exists := t.instances[instanceID]
	if !exists {
		return models.Instance{}, false
	}
	return *instance, true
}

func (t *StateTracker) GetClusterInstances(clusterID string) []models.Instance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := t.clusters[clusterID]
	instances := make([]models.Instance, 0, len(ids))
	for _, id := range ids {
		if instance, exists := t.instances[id]; exists {
			instances = append(instances, *instance)
		}
	}
	return instances
}

func (t *StateTracker) FleetState(clusterID string) models.FleetState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state := models.FleetState{
		ClusterID: clusterID,
		Desired:   t.desired[clusterID],
	}

	for _, id := range t.clusters[clusterID] {
		instance, exists := t.instances[id]
		if !exists {
			continue
		}

		switch instance.State {
		case models.InstancePending:
			state.Pending++
		case models.InstanceInService:
			state.InService++
		case models.InstanceTerminating:
			state.Terminating++
		}
	}

	return state
}

// RunningForTermination lists running instances in termination order:
// pending before in service, newest first.
func (t *StateTracker) RunningForTermination(clusterID string) []models.Instance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var running []models.Instance
	for _, id := range t.clusters[clusterID] {
		if instance, exists := t.instances[id]; exists && instance.IsRunning() {
			running = append(running, *instance)
		}
	}

	sort.SliceStable(running, func(i, j int) bool {
		if running[i].State != running[j].State {
			return running[i].State == models.InstancePending
		}
		return running[i].LaunchedAt.After(running[j].LaunchedAt)
	})
	return running
}

func (t *StateTracker) CleanupTerminated(clusterID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed int
	ids := t.clusters[clusterID]
	kept := make([]string, 0, len(ids))

	for _, id := range ids {
		instance, exists := t.instances[id]
		if !exists {
			continue
		}

		if instance.State == models.InstanceTerminated {
			delete(t.instances, id)
			removed++
		} else {
			kept = append(kept, id)
		}
	}

	t.clusters[clusterID] = kept
	return removed
}
