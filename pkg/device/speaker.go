package device

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/linguaflow/linguaflow/pkg/core/audio"
)

// segment is one scheduled playback unit queued for the pull loop.
type segment struct {
	data      []byte
	cancelled bool
}

// Speaker plays synthesized audio through the default output device. It
// is both the scheduler's sink and its clock: units are quantized to
// 16-bit PCM and queued for oto's pull loop in schedule order, and Now
// reports seconds since the speaker opened.
type Speaker struct {
	otoCtx *oto.Context
	logger *slog.Logger
	epoch  time.Time

	mu       sync.Mutex
	segments []*segment
	player   *oto.Player
	closed   bool
}

// NewSpeaker opens the output device at the synthesized audio format:
// 24 kHz mono signed 16-bit little-endian.
func NewSpeaker(logger *slog.Logger) (*Speaker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := audio.OutputConfig()
	opts := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms of audio keeps latency low without glitching.
		BufferSize: 100 * time.Millisecond,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("device: init speaker: %w", err)
	}
	<-ready

	return &Speaker{otoCtx: otoCtx, logger: logger, epoch: time.Now()}, nil
}

// Now implements the scheduler clock: seconds since the speaker opened.
func (s *Speaker) Now() float64 {
	return time.Since(s.epoch).Seconds()
}

// Play queues one unit behind everything already scheduled and returns a
// stop function that discards whatever of the unit has not yet reached
// the device.
func (s *Speaker) Play(unit audio.PlaybackUnit, _ float64) func() {
	seg := &segment{data: audio.QuantizePCM16(unit.Samples)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}

	s.segments = append(s.segments, seg)
	if s.player == nil {
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}

	return func() {
		s.mu.Lock()
		seg.cancelled = true
		s.mu.Unlock()
	}
}

// Read implements io.Reader for oto's pull loop. When the queue runs dry
// it emits silence so the device keeps running without underruns.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.segments) > 0 {
		seg := s.segments[0]
		if seg.cancelled || len(seg.data) == 0 {
			s.segments = s.segments[1:]
			continue
		}
		n := copy(p, seg.data)
		seg.data = seg.data[n:]
		if len(seg.data) == 0 {
			s.segments = s.segments[1:]
		}
		return n, nil
	}

	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// Close releases the output device. Idempotent.
func (s *Speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.segments = nil
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		player.Pause()
		player.Close()
	}
}
