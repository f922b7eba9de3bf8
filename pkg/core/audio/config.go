// Package audio implements the PCM plumbing between the capture hardware
// and the live transport: box-filter downsampling, 16-bit quantization,
// transport encoding, and playback decoding.
package audio

const (
	// InputSampleRate is the wire rate for outbound microphone audio.
	InputSampleRate = 16000

	// OutputSampleRate is the fixed rate of synthesized audio from the server.
	OutputSampleRate = 24000
)

// AudioConfig specifies audio format parameters.
type AudioConfig struct {
	// SampleRate in Hz. Common values: 16000, 24000, 44100, 48000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// InputConfig returns the outbound wire audio configuration.
func InputConfig() AudioConfig {
	return AudioConfig{SampleRate: InputSampleRate, Channels: 1, BitsPerSample: 16}
}

// OutputConfig returns the inbound synthesized audio configuration.
func OutputConfig() AudioConfig {
	return AudioConfig{SampleRate: OutputSampleRate, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// BytesForDurationMs returns the byte count for the given duration in milliseconds.
func (c AudioConfig) BytesForDurationMs(ms int) int {
	return (c.BytesPerSecond() * ms) / 1000
}
