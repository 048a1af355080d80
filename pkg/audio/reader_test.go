package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/wakeline/pkg/audio"
)

// wavFile builds a 16-bit PCM WAV with an extra chunk before the data.
func wavFile(t *testing.T, f audio.Format, samples []int16, bits uint16) []byte {
	t.Helper()
	var buf bytes.Buffer
	data := audio.PCM(samples)
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	buf.WriteString("RIFF")
	w(uint32(4 + 8 + 16 + 8 + 3 + 1 + 8 + len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1))
	w(uint16(f.Channels))
	w(uint32(f.SampleRate))
	w(uint32(f.BytesPerSecond()))
	w(uint16(f.Channels * 2))
	w(bits)
	buf.WriteString("LIST")
	w(uint32(3))
	buf.Write([]byte{'a', 'b', 'c', 0}) // odd chunk plus pad byte
	buf.WriteString("data")
	w(uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func readAll(t *testing.T, r *audio.PCMReader) []audio.AudioFrame {
	t.Helper()
	var out []audio.AudioFrame
	for {
		f, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		out = append(out, f)
	}
}

func TestPCMReader(t *testing.T) {
	f := audio.Format{SampleRate: 1000, Channels: 1}
	samples := make([]int16, 25)
	for i := range samples {
		samples[i] = int16(i)
	}
	r, err := audio.NewPCMReader(bytes.NewReader(audio.PCM(samples)), f, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	got := readAll(t, r)
	if len(got) != 3 {
		t.Fatalf("frames = %d, want 3", len(got))
	}
	if n := len(got[2].Data) / 2; n != 5 {
		t.Errorf("last frame = %d samples, want 5", n)
	}
	if got[1].Timestamp != 10*time.Millisecond || got[2].Timestamp != 20*time.Millisecond {
		t.Errorf("timestamps = %v, %v", got[1].Timestamp, got[2].Timestamp)
	}
	if first := audio.Samples(got[1].Data)[0]; first != 10 {
		t.Errorf("frame 1 starts with %d, want 10", first)
	}
}

func TestPCMReader_InvalidFormat(t *testing.T) {
	if _, err := audio.NewPCMReader(bytes.NewReader(nil), audio.Format{}, time.Millisecond); err == nil {
		t.Error("expected error for zero format")
	}
}

func TestWAVReader(t *testing.T) {
	f := audio.Format{SampleRate: 8000, Channels: 2}
	samples := []int16{1, -1, 2, -2, 3, -3}
	r, err := audio.NewWAVReader(bytes.NewReader(wavFile(t, f, samples, 16)), time.Second)
	if err != nil {
		t.Fatalf("NewWAVReader: %v", err)
	}
	if r.Format() != f {
		t.Errorf("format = %+v, want %+v", r.Format(), f)
	}
	got := readAll(t, r)
	if len(got) != 1 || !slices.Equal(audio.Samples(got[0].Data), samples) {
		t.Errorf("frames = %v", got)
	}
}

func TestWAVReader_Errors(t *testing.T) {
	f := audio.Format{SampleRate: 8000, Channels: 1}
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil},
		{name: "not riff", data: []byte("RIFX\x00\x00\x00\x00WAVE")},
		{name: "not wave", data: []byte("RIFF\x00\x00\x00\x00AVI ")},
		{name: "8 bit", data: wavFile(t, f, []int16{1}, 8), wantErr: audio.ErrUnsupportedWAV},
		{name: "no data chunk", data: wavFile(t, f, nil, 16)[:12+8+16]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := audio.NewWAVReader(bytes.NewReader(tt.data), time.Second)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
