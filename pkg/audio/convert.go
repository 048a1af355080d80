package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
)

// Converter normalises frames of any layout to mono PCM16 at SampleRate.
// It keeps per-stream warning state, so use one per stream from a single
// goroutine.
type Converter struct {
	SampleRate int

	warned  bool
	dropped bool
}

// Convert returns frame unchanged when it is already mono at c.SampleRate.
// Otherwise the channels are averaged and the result linearly resampled.
// Frames whose byte count does not cover whole sample frames come back empty.
func (c *Converter) Convert(frame AudioFrame) AudioFrame {
	want := Format{SampleRate: c.SampleRate, Channels: 1}
	out := AudioFrame{SampleRate: want.SampleRate, Channels: 1, Timestamp: frame.Timestamp}

	if frame.Channels < 1 || len(frame.Data)%(2*frame.Channels) != 0 {
		if !c.dropped {
			c.dropped = true
			slog.Warn("dropping audio not aligned to whole samples",
				"bytes", len(frame.Data), "format", frame.Format())
		}
		return out
	}
	if frame.Format() == want {
		return frame
	}
	if !c.warned {
		c.warned = true
		slog.Warn("converting audio", "from", frame.Format(), "to", want)
	}

	mono := Downmix(Samples(frame.Data), frame.Channels)
	out.Data = PCM(Resample(mono, frame.SampleRate, want.SampleRate))
	return out
}

// ConvertStream converts every frame from in on its own goroutine and drops
// frames that come out empty. The returned channel has the capacity of in
// and is closed after in is.
func ConvertStream(in <-chan AudioFrame, sampleRate int) <-chan AudioFrame {
	out := make(chan AudioFrame, cap(in))
	go func() {
		defer close(out)
		c := Converter{SampleRate: sampleRate}
		for f := range in {
			if f = c.Convert(f); len(f.Data) > 0 {
				out <- f
			}
		}
	}()
	return out
}

// Downmix averages interleaved channels into one. A trailing partial sample
// frame is dropped.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += int32(s)
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// Resample converts mono samples between rates by linear interpolation.
// Invalid or equal rates return samples as is.
func Resample(samples []int16, from, to int) []int16 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]int16, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		a, b := float64(samples[j]), float64(samples[min(j+1, last)])
		out[i] = int16(a + (b-a)*(pos-float64(j)))
	}
	return out
}

// Samples decodes little-endian PCM16. A trailing odd byte is ignored.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

// PCM encodes samples as little-endian PCM16.
func PCM(samples []int16) []byte {
	b := make([]byte, 0, 2*len(samples))
	for _, s := range samples {
		b = binary.LittleEndian.AppendUint16(b, uint16(s))
	}
	return b
}

// String renders f as, for example, "48000Hz stereo".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	}
	return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
}
