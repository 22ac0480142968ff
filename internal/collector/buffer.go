package collector

import (
	"sync"

	"github.com/OldStager01/imagizer-autoscaler/pkg/models"
)

const defaultBufferSize = 10000

// Buffer holds samples pushed asynchronously between ticks. Drain hands the
// whole content to the tick and empties the buffer in one step.
type Buffer struct {
	samples []models.MetricSample
	size    int
	dropped uint64
	mu      sync.Mutex
}

func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Buffer{size: size}
}

// Push appends samples. When full, the oldest samples are dropped and the
// number dropped by this call is returned.
func (b *Buffer) Push(samples ...models.MetricSample) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, samples...)

	var dropped int
	if over := len(b.samples) - b.size; over > 0 {
		dropped = over
		b.samples = append([]models.MetricSample(nil), b.samples[over:]...)
		b.dropped += uint64(over)
	}
	return dropped
}

func (b *Buffer) Drain() []models.MetricSample {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.samples
	b.samples = nil
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
