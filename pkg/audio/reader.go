package audio

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// PCMReader reads raw PCM16 from an underlying reader in chunks of a fixed
// duration.
type PCMReader struct {
	r      io.Reader
	format Format
	buf    []byte
	ts     time.Duration
}

// NewPCMReader returns a reader delivering chunk-long frames of format f.
// The chunk is rounded down to whole sample frames, with a minimum of one.
func NewPCMReader(r io.Reader, f Format, chunk time.Duration) (*PCMReader, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, fmt.Errorf("audio: invalid format %s", f)
	}
	frameBytes := 2 * f.Channels
	n := int(int64(f.BytesPerSecond()) * int64(chunk) / int64(time.Second))
	n = max(n/frameBytes, 1) * frameBytes
	return &PCMReader{r: r, format: f, buf: make([]byte, n)}, nil
}

// Format returns the format of the frames produced.
func (p *PCMReader) Format() Format { return p.format }

// ReadFrame returns the next frame. The final frame may be shorter than the
// chunk; a trailing partial sample is dropped. At the end of the stream it
// returns io.EOF.
func (p *PCMReader) ReadFrame() (AudioFrame, error) {
	n, err := io.ReadFull(p.r, p.buf)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		err = nil
	case err != nil:
		return AudioFrame{}, err
	}
	n -= n % (2 * p.format.Channels)
	if n == 0 {
		return AudioFrame{}, io.EOF
	}

	data := make([]byte, n)
	copy(data, p.buf[:n])
	frame := AudioFrame{
		Data:       data,
		SampleRate: p.format.SampleRate,
		Channels:   p.format.Channels,
		Timestamp:  p.ts,
	}
	p.ts += p.format.Duration(n)
	return frame, err
}
