// Package device binds the session engine to real audio hardware:
// microphone capture through malgo and speaker playback through oto.
package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// FrameFunc receives one captured microphone frame at the hardware rate.
// It must not block; the capture thread is real-time.
type FrameFunc func(samples []float32, sampleRate int)

// CaptureConfig configures the microphone device.
type CaptureConfig struct {
	// SampleRate is the hardware capture rate. Default: 48000.
	SampleRate int

	// PeriodMs is the capture period in milliseconds. Default: 40.
	PeriodMs int

	Logger *slog.Logger
}

func (c *CaptureConfig) applyDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.PeriodMs <= 0 {
		c.PeriodMs = 40
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Capture owns the microphone device and pushes float frames into the
// session. Init failure usually means a missing device or denied
// permission and is fatal to session start.
type Capture struct {
	cfg     CaptureConfig
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	onFrame FrameFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewCapture initializes the microphone in 32-bit float mono at the
// configured rate.
func NewCapture(cfg CaptureConfig, onFrame FrameFunc) (*Capture, error) {
	cfg.applyDefaults()

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("device: init audio context: %w", err)
	}

	c := &Capture{cfg: cfg, ctx: malgoCtx, onFrame: onFrame}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(cfg.PeriodMs)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			c.onFrame(bytesToFloat32(input), cfg.SampleRate)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		return nil, fmt.Errorf("device: init microphone: %w", err)
	}
	c.device = device

	cfg.Logger.Debug("microphone initialized",
		"sample_rate", cfg.SampleRate, "period_ms", cfg.PeriodMs)
	return c, nil
}

// Start begins capturing.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("device: capture closed")
	}
	if c.started {
		return nil
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("device: start microphone: %w", err)
	}
	c.started = true
	return nil
}

// Stop pauses capturing without releasing the device.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started || c.closed {
		return nil
	}
	c.started = false
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("device: stop microphone: %w", err)
	}
	return nil
}

// Close releases the device and audio context. Idempotent.
func (c *Capture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.started = false

	if c.device != nil {
		c.device.Uninit()
	}
	if c.ctx != nil {
		c.ctx.Uninit()
	}
}

// bytesToFloat32 reinterprets little-endian 32-bit float PCM. The frame
// is copied because malgo reuses the callback buffer.
func bytesToFloat32(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
