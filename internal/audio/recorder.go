package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// Recorder captures the default microphone and implements ChunkSource.
type Recorder struct {
	ctx           *malgo.AllocatedContext
	sampleRate    uint32
	channels      uint32
	chunkInterval time.Duration

	mu     sync.Mutex
	device *malgo.Device
	pump   *pump
}

var _ ChunkSource = (*Recorder)(nil)

// NewRecorder creates a recorder that asks the device for sampleRate and
// channels. The device may pick a different native rate; chunks are always
// resampled to TargetSampleRate. Call Close when done.
func NewRecorder(sampleRate, channels uint32, chunkInterval time.Duration) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing audio context: %v", ErrCapture, err)
	}

	return &Recorder{
		ctx:           ctx,
		sampleRate:    sampleRate,
		channels:      channels,
		chunkInterval: chunkInterval,
	}, nil
}

// Start opens the capture device and returns the chunk stream.
func (r *Recorder) Start(ctx context.Context) (<-chan []float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.device != nil {
		return nil, fmt.Errorf("%w: already recording", ErrCapture)
	}

	p := newPump(r.chunkInterval)
	var nativeRate atomic.Uint32
	nativeRate.Store(r.sampleRate)
	channels := r.channels

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = channels
	deviceCfg.SampleRate = r.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, frameCount uint32) {
			samples := bytesToFloat32(pSample, frameCount*channels)
			p.write(Resample(samples, nativeRate.Load(), channels))
		},
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing capture device: %v", ErrCapture, err)
	}
	if rate := device.SampleRate(); rate != 0 && rate != r.sampleRate {
		slog.Info("[audio] device picked a different native rate", "requested", r.sampleRate, "actual", rate)
		nativeRate.Store(rate)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: starting capture device: %v", ErrCapture, err)
	}

	r.device = device
	r.pump = p
	go p.run(ctx)

	return p.out, nil
}

// Stop closes the device. The chunk channel delivers whatever was captured
// before Stop and then closes. Stop does not wait for the consumer.
func (r *Recorder) Stop() {
	r.mu.Lock()
	device, p := r.device, r.pump
	r.device, r.pump = nil, nil
	r.mu.Unlock()

	// Uninit waits for an in-progress data callback, so it must run
	// without r.mu held.
	if device != nil {
		device.Uninit()
	}
	if p != nil {
		p.halt()
	}
}

// Close stops any capture and releases the audio context.
func (r *Recorder) Close() error {
	r.Stop()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return errors.Join(ErrCapture, fmt.Errorf("uninitializing audio context: %w", err))
		}
		r.ctx.Free()
		r.ctx = nil
	}
	return nil
}

// bytesToFloat32 decodes little-endian float32 samples. A short buffer
// yields fewer samples rather than an error.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	n := min(int(sampleCount), len(data)/4)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
