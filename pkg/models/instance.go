package models

import (
	"strings"
	"time"
)

// InstanceState mirrors the Auto Scaling lifecycle states the simulator
// reproduces.
type InstanceState string

const (
	InstancePending     InstanceState = "Pending"
	InstanceInService   InstanceState = "InService"
	InstanceTerminating InstanceState = "Terminating"
	InstanceTerminated  InstanceState = "Terminated"
)

type Instance struct {
	ID           string        `json:"id"`
	ClusterID    string        `json:"cluster_id"`
	State        InstanceState `json:"state"`
	Spot         bool          `json:"spot"`
	LaunchedAt   time.Time     `json:"launched_at"`
	InServiceAt  *time.Time    `json:"in_service_at,omitempty"`
	TerminatedAt *time.Time    `json:"terminated_at,omitempty"`
}

func NewInstance(clusterID string) *Instance {
	return &Instance{
		ID:         "i-" + strings.ReplaceAll(NewUUID(), "-", "")[:17],
		ClusterID:  clusterID,
		State:      InstancePending,
		LaunchedAt: time.Now(),
	}
}

func (i *Instance) MarkInService() {
	now := time.Now()
	i.State = InstanceInService
	i.InServiceAt = &now
}

func (i *Instance) MarkTerminating() {
	i.State = InstanceTerminating
}

func (i *Instance) MarkTerminated() {
	now := time.Now()
	i.State = InstanceTerminated
	i.TerminatedAt = &now
}

func (i *Instance) IsInService() bool {
	return i.State == InstanceInService
}

// IsRunning reports whether the instance counts toward desired capacity.
func (i *Instance) IsRunning() bool {
	return i.State == InstancePending || i.State == InstanceInService
}

// FleetState summarises the instances of one cluster by lifecycle state.
type FleetState struct {
	ClusterID   string `json:"cluster_id"`
	Desired     int    `json:"desired"`
	Pending     int    `json:"pending"`
	InService   int    `json:"in_service"`
	Terminating int    `json:"terminating"`
}

// Running is the count of instances that are pending or in service.
func (f FleetState) Running() int {
	return f.Pending + f.InService
}
