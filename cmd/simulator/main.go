package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OldStager01/imagizer-autoscaler/internal/logger"
	"github.com/OldStager01/imagizer-autoscaler/internal/simulator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	port := flag.Int("port", 9000, "simulator server port")
	logLevel := flag.String("log-level", "info", "log level")
	instances := flag.Int("instances", 3, "instances per implicitly created cluster")
	baseLoad := flag.Float64("base-load", 0, "offered requests per minute across a cluster (default 120000 per instance)")
	capacity := flag.Float64("instance-capacity", 300000, "requests per minute one instance serves at full CPU")
	variance := flag.Float64("variance", 0.05, "relative jitter applied to CPU and request samples")
	provision := flag.Duration("provision-time", time.Minute, "time before a launched instance serves traffic")
	flag.Parse()

	logger.Setup(*logLevel, "development")
	logger.Info("Starting Imagizer cluster simulator")

	sim := simulator.New(simulator.Config{
		Port: *port,
		Defaults: simulator.ClusterSimConfig{
			InitialInstances: *instances,
			BaseLoad:         *baseLoad,
			InstanceCapacity: *capacity,
			Variance:         *variance,
			ProvisionTime:    *provision,
		},
	})

	if err := sim.Start(); err != nil {
		return fmt.Errorf("failed to start simulator: %w", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down simulator")
	return sim.Stop()
}
