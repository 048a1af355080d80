package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrUnsupportedWAV is returned for WAV files that are not 16-bit PCM.
var ErrUnsupportedWAV = errors.New("audio: unsupported WAV encoding")

const wavFormatPCM = 1

// NewWAVReader parses the RIFF/WAVE header from r and returns a reader over
// the samples of its data chunk. Chunks other than "fmt " and "data" are
// skipped, so the header length may vary.
func NewWAVReader(r io.Reader, chunk time.Duration) (*PCMReader, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("audio: WAV header: %w", err)
	}
	if string(hdr[0:4]) != "RIFF" {
		return nil, errors.New("audio: WAV missing RIFF header")
	}
	if string(hdr[8:12]) != "WAVE" {
		return nil, errors.New("audio: WAV missing WAVE identifier")
	}

	var (
		format   Format
		foundFmt bool
	)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return nil, fmt.Errorf("audio: WAV missing data chunk: %w", err)
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("audio: WAV fmt chunk too short (%d bytes)", size)
			}
			var fmtData [16]byte
			if _, err := io.ReadFull(r, fmtData[:]); err != nil {
				return nil, fmt.Errorf("audio: WAV fmt chunk: %w", err)
			}
			tag := binary.LittleEndian.Uint16(fmtData[0:2])
			bits := binary.LittleEndian.Uint16(fmtData[14:16])
			if tag != wavFormatPCM || bits != 16 {
				return nil, fmt.Errorf("%w: format tag %d, %d bits", ErrUnsupportedWAV, tag, bits)
			}
			format = Format{
				Channels:   int(binary.LittleEndian.Uint16(fmtData[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(fmtData[4:8])),
			}
			foundFmt = true
			if err := skip(r, size-16+size%2); err != nil {
				return nil, err
			}
		case "data":
			if !foundFmt {
				return nil, errors.New("audio: WAV data chunk before fmt chunk")
			}
			return NewPCMReader(io.LimitReader(r, size), format, chunk)
		default:
			// Chunks are word-aligned: pad by 1 if odd size.
			if err := skip(r, size+size%2); err != nil {
				return nil, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("audio: WAV skip chunk: %w", err)
	}
	return nil
}
