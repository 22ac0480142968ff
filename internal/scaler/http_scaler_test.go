package scaler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/imagizer-autoscaler/internal/scaler"
)

func TestHTTPScaler(t *testing.T) {
	desired := 3
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/imagizer/capacity" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodPut:
			var req scaler.CapacityRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			desired = req.Desired
			w.WriteHeader(http.StatusAccepted)
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(scaler.CapacityRequest{Desired: desired})
		}
	}))
	defer server.Close()

	s := scaler.NewHTTPScaler(scaler.HTTPScalerConfig{Endpoint: server.URL})
	defer s.Close()

	require.NoError(t, s.SetDesiredCapacity(context.Background(), "imagizer", 8))
	assert.Equal(t, 8, desired)

	capacity, err := s.GetCapacity(context.Background(), "imagizer")
	require.NoError(t, err)
	assert.Equal(t, 8, capacity)

	assert.ErrorIs(t, s.SetDesiredCapacity(context.Background(), "other", 8), scaler.ErrClusterNotFound)
	_, err = s.GetCapacity(context.Background(), "other")
	assert.ErrorIs(t, err, scaler.ErrClusterNotFound)
	assert.ErrorIs(t, s.SetDesiredCapacity(context.Background(), "imagizer", -2), scaler.ErrInvalidTarget)
}
