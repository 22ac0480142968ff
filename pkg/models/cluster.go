package models

import (
	"encoding/json"
	"time"
)

type ClusterStatus string

const (
	ClusterStatusActive ClusterStatus = "active"
	ClusterStatusPaused ClusterStatus = "paused"
	ClusterStatusError  ClusterStatus = "error"
)

// ClusterConfig holds the per-cluster wiring to the outside world.
type ClusterConfig struct {
	CollectorEndpoint    string `json:"collector_endpoint,omitempty"`
	AutoScalingGroupName string `json:"auto_scaling_group_name,omitempty"`
	LoadBalancer         string `json:"load_balancer,omitempty"`
	TargetGroup          string `json:"target_group,omitempty"`
}

type Cluster struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	MinCapacity   int            `json:"min_capacity"`
	MaxCapacity   int            `json:"max_capacity"`
	Status        ClusterStatus  `json:"status"`
	Config        *ClusterConfig `json:"config,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	LastScaleTime *time.Time     `json:"last_scale_time,omitempty"`
}

func NewCluster(name string, minCapacity, maxCapacity int) *Cluster {
	now := time.Now()
	return &Cluster{
		ID:          name,
		Name:        name,
		MinCapacity: minCapacity,
		MaxCapacity: maxCapacity,
		Status:      ClusterStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (c *Cluster) IsActive() bool {
	return c.Status == ClusterStatusActive
}

func (c *Cluster) ConfigJSON() ([]byte, error) {
	if c.Config == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.Config)
}

func (c *Cluster) ParseConfig(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	c.Config = &ClusterConfig{}
	return json.Unmarshal(data, c.Config)
}
