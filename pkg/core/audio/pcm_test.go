package audio

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsamplePassthrough(t *testing.T) {
	frame := []float32{0.1, -0.2, 0.3, -0.4}
	got := Downsample(frame, 16000, 16000)

	require.Len(t, got, len(frame))
	for i := range frame {
		assert.Equal(t, frame[i], got[i])
	}
}

func TestDownsampleTwoToOne(t *testing.T) {
	// At a 2:1 ratio every output sample is the average of two adjacent
	// input samples.
	frame := []float32{0.0, 1.0, 0.5, -0.5, -1.0, 1.0}
	got := Downsample(frame, 32000, 16000)

	require.Len(t, got, 3)
	assert.InDelta(t, 0.5, got[0], 1e-6)
	assert.InDelta(t, 0.0, got[1], 1e-6)
	assert.InDelta(t, 0.0, got[2], 1e-6)
}

func TestDownsampleFractionalRatio(t *testing.T) {
	frame := make([]float32, 441)
	got := Downsample(frame, 44100, 16000)

	// 441 samples at 44.1k cover 10ms, which is 160 samples at 16k.
	assert.Len(t, got, 160)
}

func TestDownsampleEmpty(t *testing.T) {
	assert.Nil(t, Downsample(nil, 48000, 16000))
	assert.Nil(t, Downsample([]float32{}, 48000, 16000))
}

func TestQuantizePCM16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"positive full scale", 1.0, 32767},
		{"negative full scale", -1.0, -32768},
		{"clamp above", 2.5, 32767},
		{"clamp below", -2.5, -32768},
		{"half positive", 0.5, 16383},
		{"half negative", -0.5, -16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := QuantizePCM16([]float32{tt.in})
			require.Len(t, b, 2)
			got := int16(b[0]) | int16(b[1])<<8
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeChunk(t *testing.T) {
	frame := []float32{0.0, 1.0, -1.0, 0.5}
	chunk := EncodeChunk(frame, 16000)

	assert.Equal(t, "audio/pcm;rate=16000", chunk.MIMEType)
	assert.Equal(t, 16000, chunk.SampleRate)

	raw, err := base64.StdEncoding.DecodeString(chunk.Data)
	require.NoError(t, err)
	assert.Len(t, raw, len(frame)*2)
}

func TestEncodeChunkEmpty(t *testing.T) {
	chunk := EncodeChunk(nil, 48000)
	assert.Empty(t, chunk.Data)
	assert.Equal(t, "audio/pcm;rate=16000", chunk.MIMEType)
}

func TestDecodePCM16RoundTrip(t *testing.T) {
	frame := []float32{0.0, 0.25, -0.25, 0.9, -0.9}
	pcm := QuantizePCM16(frame)
	unit := DecodePCM16(base64.StdEncoding.EncodeToString(pcm), OutputSampleRate)

	require.Len(t, unit.Samples, len(frame))
	for i := range frame {
		assert.InDelta(t, float64(frame[i]), float64(unit.Samples[i]), 1.0/32768)
	}
	assert.InDelta(t, float64(len(frame))/float64(OutputSampleRate), unit.Duration, 1e-9)
}

func TestDecodePCM16Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"invalid base64", "!!!not-base64!!!"},
		{"empty", ""},
		{"single byte", base64.StdEncoding.EncodeToString([]byte{0x7f})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := DecodePCM16(tt.in, OutputSampleRate)
			assert.Empty(t, unit.Samples)
			assert.Zero(t, unit.Duration)
		})
	}
}

func TestDecodePCM16TruncatedTail(t *testing.T) {
	// Three bytes: one full sample plus a dangling byte. The dangling byte
	// is ignored.
	raw := []byte{0x00, 0x40, 0xff}
	unit := DecodePCM16(base64.StdEncoding.EncodeToString(raw), OutputSampleRate)

	require.Len(t, unit.Samples, 1)
	assert.InDelta(t, 0.5, unit.Samples[0], 1e-3)
}

func TestAudioConfigMath(t *testing.T) {
	cfg := OutputConfig()
	assert.Equal(t, 48000, cfg.BytesPerSecond())
	assert.Equal(t, 1000, cfg.DurationMs(48000))
	assert.Equal(t, 4800, cfg.BytesForDurationMs(100))
}

func TestRMSEnergy(t *testing.T) {
	assert.Zero(t, RMSEnergy(nil))

	dc := []float32{0.5, 0.5, 0.5, 0.5}
	assert.InDelta(t, 0.5, RMSEnergy(dc), 1e-9)

	// Full-scale square wave has RMS 1.
	sq := []float32{1, -1, 1, -1}
	assert.InDelta(t, 1.0, RMSEnergy(sq), 1e-9)
}

func TestPeakAmplitude(t *testing.T) {
	assert.Zero(t, PeakAmplitude(nil))
	assert.InDelta(t, 0.8, PeakAmplitude([]float32{0.1, -0.8, 0.3}), 1e-9)
}

func TestLevelTap(t *testing.T) {
	tap := NewLevelTap(0)
	tap.Observe([]float32{0.5, 0.5})

	rms, peak := tap.Level()
	assert.InDelta(t, 0.5, rms, 1e-9)
	assert.InDelta(t, 0.5, peak, 1e-9)

	tap.Reset()
	rms, peak = tap.Level()
	assert.Zero(t, rms)
	assert.Zero(t, peak)
}

func TestLevelTapSmoothing(t *testing.T) {
	tap := NewLevelTap(0.5)
	tap.Observe([]float32{1, -1})
	tap.Observe([]float32{0, 0})

	rms, _ := tap.Level()
	if math.Abs(rms-0.5) > 1e-9 {
		t.Fatalf("smoothed rms = %v, want 0.5", rms)
	}
}
