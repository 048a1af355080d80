package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// maxOpusFrameMs is the longest frame an Opus packet can carry.
const maxOpusFrameMs = 120

// OpusDecoder decodes a stream of Opus packets to PCM16. Each stream needs
// its own decoder, which keeps state across consecutive packets.
type OpusDecoder struct {
	dec      *gopus.Decoder
	format   Format
	maxFrame int
}

// NewOpusDecoder creates a decoder producing PCM in format f. Opus supports
// sample rates of 8, 12, 16, 24 and 48 kHz with one or two channels.
func NewOpusDecoder(f Format) (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(f.SampleRate, f.Channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{
		dec:      dec,
		format:   f,
		maxFrame: f.SampleRate * maxOpusFrameMs / 1000,
	}, nil
}

// Format returns the PCM format produced by Decode.
func (d *OpusDecoder) Format() Format { return d.format }

// Decode decodes one Opus packet into a frame.
func (d *OpusDecoder) Decode(packet []byte) (AudioFrame, error) {
	pcm, err := d.dec.Decode(packet, d.maxFrame, false)
	if err != nil {
		return AudioFrame{}, fmt.Errorf("audio: opus decode: %w", err)
	}
	return AudioFrame{
		Data:       PCM(pcm),
		SampleRate: d.format.SampleRate,
		Channels:   d.format.Channels,
	}, nil
}
