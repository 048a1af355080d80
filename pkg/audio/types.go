// Package audio holds the PCM plumbing between audio inputs and the
// detection pipeline: format conversion, re-framing, WAV and raw PCM
// readers, and an Opus decoder for compressed streams.
//
// All PCM is signed 16-bit little-endian, interleaved when multi-channel.
package audio

import "time"

// AudioFrame is a chunk of PCM as it arrives from an input. Its length is
// whatever the input delivers; [Framer] cuts the converted samples into
// pipeline frames.
type AudioFrame struct {
	// Data is little-endian int16 PCM.
	Data []byte

	// SampleRate in Hz (e.g., 48000 for Opus, 16000 for the detectors).
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int

	// Timestamp marks the start of this frame relative to the stream start.
	Timestamp time.Duration
}

// Format returns the frame's sample rate and channel count.
func (f AudioFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}

// Duration returns the playback length of the frame.
func (f AudioFrame) Duration() time.Duration {
	return f.Format().Duration(len(f.Data))
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the PCM16 byte rate of f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration returns the playback length of n bytes of PCM16 in format f.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}
