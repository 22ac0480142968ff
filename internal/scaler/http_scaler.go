package scaler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
)

// CapacityRequest is the body exchanged with the simulator's capacity
// endpoint.
type CapacityRequest struct {
	Desired int `json:"desired"`
}

// HTTPScaler forwards desired capacity to the cluster simulator service.
type HTTPScaler struct {
	client   *http.Client
	endpoint string
}

type HTTPScalerConfig struct {
	Endpoint string
	Timeout  time.Duration
}

func NewHTTPScaler(cfg HTTPScalerConfig) *HTTPScaler {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPScaler{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
	}
}

func (s *HTTPScaler) url(clusterID string) string {
	return fmt.Sprintf("%s/%s/capacity", s.endpoint, clusterID)
}

func (s *HTTPScaler) SetDesiredCapacity(ctx context.Context, clusterID string, target int) error {
	if target < 0 {
		return ErrInvalidTarget
	}

	body, err := json.Marshal(CapacityRequest{Desired: target})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url(clusterID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
	case http.StatusNotFound:
		return ErrClusterNotFound
	default:
		return fmt.Errorf("%w: unexpected status code %d", ErrScalingFailed, resp.StatusCode)
	}

	logger.WithCluster(clusterID).Infof("Requested desired capacity %d", target)
	return nil
}

func (s *HTTPScaler) GetCapacity(ctx context.Context, clusterID string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url(clusterID), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrClusterNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status code %d", ErrScalingFailed, resp.StatusCode)
	}

	var out CapacityRequest
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}
	return out.Desired, nil
}

func (s *HTTPScaler) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
