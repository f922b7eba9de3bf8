package audio

import (
	"encoding/base64"
	"fmt"
	"math"
)

// EncodedChunk is a transport-ready block of microphone audio: base64
// PCM16 little-endian at the wire input rate, tagged with a self-describing
// MIME label so the receiver needs no side-channel format negotiation.
type EncodedChunk struct {
	Data       string
	MIMEType   string
	SampleRate int
}

// PlaybackUnit is one decoded block of synthesized audio, owned by the
// playback scheduler from creation until playback completes.
type PlaybackUnit struct {
	Samples    []float32
	SampleRate int

	// Duration is the playback length in seconds.
	Duration float64
}

// Downsample converts a mono float frame from srcRate to dstRate using
// box-filter decimation: output sample i is the average of all source
// samples in [round(i*r), round((i+1)*r)) where r = srcRate/dstRate.
// Equal rates pass through unchanged. There is no anti-aliasing filter;
// content above dstRate/2 aliases, an accepted trade-off for speech.
func Downsample(frame []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return frame
	}
	if len(frame) == 0 {
		return nil
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(math.Round(float64(len(frame)) / ratio))
	if outLen <= 0 {
		return nil
	}

	out := make([]float32, outLen)
	start := 0
	for i := range out {
		end := int(math.Round(float64(i+1) * ratio))
		if end > len(frame) {
			end = len(frame)
		}

		var sum float64
		count := 0
		for j := start; j < end; j++ {
			sum += float64(frame[j])
			count++
		}
		if count > 0 {
			out[i] = float32(sum / float64(count))
		}
		start = end
	}
	return out
}

// QuantizePCM16 converts float samples to 16-bit signed little-endian PCM.
// Samples are clamped to [-1, 1] and scaled asymmetrically (32768 for
// negative values, 32767 for non-negative) so the full int16 range is
// reachable without overflow.
func QuantizePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		s := float64(sample)
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}

		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// EncodeChunk downsamples a captured frame to the wire input rate,
// quantizes it to PCM16, and packages it for transport. It never fails:
// a zero-length frame yields a zero-length chunk.
func EncodeChunk(frame []float32, srcRate int) EncodedChunk {
	downsampled := Downsample(frame, srcRate, InputSampleRate)
	pcm := QuantizePCM16(downsampled)

	return EncodedChunk{
		Data:       base64.StdEncoding.EncodeToString(pcm),
		MIMEType:   fmt.Sprintf("audio/pcm;rate=%d", InputSampleRate),
		SampleRate: InputSampleRate,
	}
}

// DecodePCM16 converts a base64-encoded PCM16 fragment into a PlaybackUnit
// at the given sample rate. Malformed base64 or a truncated trailing byte
// never produce an error: bad input decodes to a zero-duration unit so one
// corrupt fragment cannot kill a live conversation.
func DecodePCM16(b64 string, sampleRate int) PlaybackUnit {
	unit := PlaybackUnit{SampleRate: sampleRate}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(raw) < 2 {
		return unit
	}

	count := len(raw) / 2
	unit.Samples = make([]float32, count)
	for i := 0; i < count; i++ {
		v := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		unit.Samples[i] = float32(v) / 32768.0
	}
	if sampleRate > 0 {
		unit.Duration = float64(count) / float64(sampleRate)
	}
	return unit
}
