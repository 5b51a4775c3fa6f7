// Package slots persists snapshots outside the process: named save slots on
// disk or in redis, each carrying the metadata needed to refuse a snapshot
// that the running build cannot read.
package slots

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

var (
	ErrNotFound         = errors.New("slots: slot not found")
	ErrInvalidName      = errors.New("slots: invalid slot name")
	ErrMalformed        = errors.New("slots: malformed slot")
	ErrVersionMismatch  = errors.New("slots: version mismatch")
	ErrChecksumMismatch = errors.New("slots: checksum mismatch")
)

// maxHeaderLine bounds the JSON header so a damaged file cannot make the
// reader buffer without limit.
const maxHeaderLine = 64 << 10

// Header describes a stored snapshot. Version and Fingerprint identify the
// build and the entity type table that wrote it.
type Header struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Fingerprint uint64    `json:"fingerprint"`
	Tick        uint64    `json:"tick"`
	SavedAt     time.Time `json:"saved_at"`
	Size        int       `json:"size"`
	Checksum    uint64    `json:"checksum"`
}

// Slot is a snapshot plus its header. Data is the raw chunk contents.
type Slot struct {
	Header Header
	Data   []byte
}

func Checksum(data []byte) uint64 { return xxhash.Sum64(data) }

// Verify checks that Data is what the header says was saved.
func (s Slot) Verify() error {
	if len(s.Data) != s.Header.Size {
		return fmt.Errorf("%w: %s holds %d bytes, header says %d", ErrChecksumMismatch, s.Header.Name, len(s.Data), s.Header.Size)
	}
	if sum := Checksum(s.Data); sum != s.Header.Checksum {
		return fmt.Errorf("%w: %s has %016x, header says %016x", ErrChecksumMismatch, s.Header.Name, sum, s.Header.Checksum)
	}
	return nil
}

// ValidName reports whether name can be used as a slot key and file name.
func ValidName(name string) bool {
	return name != "" && len(name) <= 128 && !strings.ContainsAny(name, `/\:`+"\x00") && name != "." && name != ".."
}

// Codec writes slots as a zstd stream holding one JSON header line followed
// by the raw snapshot bytes.
type Codec struct {
	Level zstd.EncoderLevel
}

func (c Codec) level() zstd.EncoderLevel {
	if c.Level == 0 {
		return zstd.SpeedDefault
	}
	return c.Level
}

func (c Codec) Encode(w io.Writer, s Slot) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(c.level()))
	if err != nil {
		return err
	}
	hb, err := json.Marshal(s.Header)
	if err != nil {
		enc.Close()
		return fmt.Errorf("slots: encode header: %w", err)
	}
	hb = append(hb, '\n')
	if _, err := enc.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if _, err := enc.Write(s.Data); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Decode reads a whole slot. It does not verify the checksum.
func (Codec) Decode(r io.Reader) (Slot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Slot{}, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	h, err := readHeader(br)
	if err != nil {
		return Slot{}, err
	}
	// Size is untrusted until Verify; grow the body as bytes arrive.
	data, err := io.ReadAll(io.LimitReader(br, int64(h.Size)))
	if err != nil {
		return Slot{}, fmt.Errorf("%w: %s: body: %w", ErrMalformed, h.Name, err)
	}
	if len(data) != h.Size {
		return Slot{}, fmt.Errorf("%w: %s: body: %w", ErrMalformed, h.Name, io.ErrUnexpectedEOF)
	}
	return Slot{Header: h, Data: data}, nil
}

// DecodeHeader reads only the header line.
func (Codec) DecodeHeader(r io.Reader) (Header, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Header{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var line []byte
	for {
		part, err := br.ReadSlice('\n')
		line = append(line, part...)
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return Header{}, fmt.Errorf("%w: header: %w", ErrMalformed, err)
		}
		if len(line) > maxHeaderLine {
			return Header{}, fmt.Errorf("%w: header longer than %d bytes", ErrMalformed, maxHeaderLine)
		}
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}
	if h.Size < 0 {
		return Header{}, fmt.Errorf("%w: negative size %d", ErrMalformed, h.Size)
	}
	return h, nil
}
