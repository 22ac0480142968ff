package scaler

import (
	"context"
	"sync"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

// SimulatorScaler emulates an Auto Scaling group in memory. Launched
// instances become InService after ProvisionTime; terminated instances drain
// for DrainTimeout first.
type SimulatorScaler struct {
	stateTracker  *StateTracker
	provisionTime time.Duration
	drainTimeout  time.Duration
	mu            sync.Mutex
	wg            sync.WaitGroup
	done          chan struct{}
	closeOnce     sync.Once
}

type SimulatorConfig struct {
	ProvisionTime time.Duration
	DrainTimeout  time.Duration
	Callbacks     StateCallbacks
}

func NewSimulatorScaler(cfg SimulatorConfig) *SimulatorScaler {
	if cfg.ProvisionTime == 0 {
		cfg.ProvisionTime = 10 * time.Second
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 30 * time.Second
	}

	return &SimulatorScaler{
		stateTracker:  NewStateTracker(cfg.Callbacks),
		provisionTime: cfg.ProvisionTime,
		drainTimeout:  cfg.DrainTimeout,
		done:          make(chan struct{}),
	}
}

func (s *SimulatorScaler) SetDesiredCapacity(ctx context.Context, clusterID string, target int) error {
	if target < 0 {
		return ErrInvalidTarget
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateTracker.SetDesired(clusterID, target)
	running := s.stateTracker.FleetState(clusterID).Running()

	switch {
	case target > running:
		logger.WithCluster(clusterID).Infof("Launching %d instances (desired %d)", target-running, target)
		for i := 0; i < target-running; i++ {
			instance := models.NewInstance(clusterID)
			s.stateTracker.AddInstance(instance)
			s.after(s.provisionTime, instance.ID, models.InstanceInService)
		}

	case target < running:
		victims := s.stateTracker.RunningForTermination(clusterID)[:running-target]
		logger.WithCluster(clusterID).Infof("Terminating %d instances (desired %d)", len(victims), target)
		for _, instance := range victims {
			_ = s.stateTracker.UpdateState(instance.ID, models.InstanceTerminating)
			s.after(s.drainTimeout, instance.ID, models.InstanceTerminated)
		}
	}

	return nil
}

// after moves an instance to state once d has elapsed, unless the scaler was
// closed first.
func (s *SimulatorScaler) after(d time.Duration, instanceID string, state models.InstanceState) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-s.done:
			return
		case <-timer.C:
		}

		current, ok := s.stateTracker.GetInstance(instanceID)
		if !ok {
			return
		}
		// A pending instance chosen for termination must not come back.
		if state == models.InstanceInService && current.State != models.InstancePending {
			return
		}
		if err := s.stateTracker.UpdateState(instanceID, state); err != nil {
			logger.Errorf("Failed to move instance %s to %s: %v", instanceID, state, err)
		}
	}()
}

func (s *SimulatorScaler) GetCapacity(ctx context.Context, clusterID string) (int, error) {
	desired, ok := s.stateTracker.Desired(clusterID)
	if !ok {
		return 0, ErrClusterNotFound
	}
	return desired, nil
}

func (s *SimulatorScaler) FleetState(clusterID string) models.FleetState {
	return s.stateTracker.FleetState(clusterID)
}

// InitializeCluster registers a cluster with count instances already in
// service.
func (s *SimulatorScaler) InitializeCluster(clusterID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < count; i++ {
		instance := models.NewInstance(clusterID)
		instance.MarkInService()
		s.stateTracker.AddInstance(instance)
	}
	s.stateTracker.SetDesired(clusterID, count)

	logger.WithCluster(clusterID).Infof("Initialized cluster with %d instances in service", count)
}

// GetStateTracker returns the internal state tracker for testing
func (s *SimulatorScaler) GetStateTracker() *StateTracker {
	return s.stateTracker
}

func (s *SimulatorScaler) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}
