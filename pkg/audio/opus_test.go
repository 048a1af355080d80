package audio_test

import (
	"math"
	"testing"

	"layeh.com/gopus"

	"github.com/MrWong99/wakeline/pkg/audio"
)

func TestOpusDecoder_RoundTrip(t *testing.T) {
	const (
		rate      = 16000
		frameSize = rate * 20 / 1000
	)
	enc, err := gopus.NewEncoder(rate, 1, gopus.Voip)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	pcm := make([]int16, frameSize)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	packet, err := enc.Encode(pcm, frameSize, 4000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	dec, err := audio.NewOpusDecoder(audio.Format{SampleRate: rate, Channels: 1})
	if err != nil {
		t.Fatalf("NewOpusDecoder: %v", err)
	}
	frame, err := dec.Decode(packet)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := len(frame.Data) / 2; got != frameSize {
		t.Errorf("decoded samples = %d, want %d", got, frameSize)
	}
	if frame.SampleRate != rate || frame.Channels != 1 {
		t.Errorf("format = %dHz %dch", frame.SampleRate, frame.Channels)
	}
}

func TestOpusDecoder_InvalidRate(t *testing.T) {
	if _, err := audio.NewOpusDecoder(audio.Format{SampleRate: 44100, Channels: 1}); err == nil {
		t.Error("expected error for a sample rate Opus does not support")
	}
}

func TestOpusDecoder_Garbage(t *testing.T) {
	dec, err := audio.NewOpusDecoder(audio.Format{SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dec.Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("expected error decoding garbage")
	}
}
