// Package records reads and writes the serialized sample files produced
// by the data preparation stage. Each file is a sequence of framed
// records (length, masked CRC of the length, payload, masked CRC of the
// payload, CRC32-Castagnoli throughout); a payload is one label byte
// followed by the flattened image bytes.
package records

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/lulzzz/self-driving-pi-car/internal/config"
)

// Sample is one decoded (image, label) pair. Image bytes are raw pixel
// intensities in [0,255]; callers scale them. A Sample is never mutated
// after decode.
type Sample struct {
	Image []byte
	Label int
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const crcMaskDelta = 0xa282ead8

func maskedCRC(p []byte) uint32 {
	c := crc32.Checksum(p, castagnoli)
	return ((c >> 15) | (c << 17)) + crcMaskDelta
}

// Reader streams samples from one record file. The sequence is
// restartable via Reset.
type Reader struct {
	path      string
	imageSize int
	f         *os.File
	br        *bufio.Reader
}

// Open binds a record file to a lazy sample sequence. imageSize is the
// expected flattened image width; samples that disagree are rejected as
// data errors.
func Open(path string, imageSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "records: open %s", path)
	}
	return &Reader{path: path, imageSize: imageSize, f: f, br: bufio.NewReader(f)}, nil
}

// Next returns the next sample, or io.EOF when the file is exhausted.
func (r *Reader) Next() (Sample, error) {
	var header [12]byte
	if _, err := io.ReadFull(r.br, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Sample{}, io.EOF
		}
		return Sample{}, errors.Wrapf(err, "records: %s: read frame header", r.path)
	}
	length := binary.LittleEndian.Uint64(header[:8])
	if got, want := binary.LittleEndian.Uint32(header[8:]), maskedCRC(header[:8]); got != want {
		return Sample{}, errors.Errorf("records: %s: length CRC mismatch", r.path)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return Sample{}, errors.Wrapf(err, "records: %s: read payload", r.path)
	}
	var footer [4]byte
	if _, err := io.ReadFull(r.br, footer[:]); err != nil {
		return Sample{}, errors.Wrapf(err, "records: %s: read payload CRC", r.path)
	}
	if got, want := binary.LittleEndian.Uint32(footer[:]), maskedCRC(payload); got != want {
		return Sample{}, errors.Errorf("records: %s: payload CRC mismatch", r.path)
	}
	return r.decode(payload)
}

func (r *Reader) decode(payload []byte) (Sample, error) {
	if len(payload) != 1+r.imageSize {
		return Sample{}, errors.Errorf("records: %s: sample has %d image bytes, expected %d",
			r.path, len(payload)-1, r.imageSize)
	}
	label := int(payload[0])
	if label >= config.NumClasses {
		return Sample{}, errors.Errorf("records: %s: label %d outside %d-class label space",
			r.path, label, config.NumClasses)
	}
	return Sample{Image: payload[1:], Label: label}, nil
}

// Reset rewinds the sequence to the first sample.
func (r *Reader) Reset() error {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "records: %s: rewind", r.path)
	}
	r.br.Reset(r.f)
	return nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// ReadAll decodes every sample in the file at path.
func ReadAll(path string, imageSize int) ([]Sample, error) {
	r, err := Open(path, imageSize)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var samples []Sample
	for {
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			return samples, nil
		}
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
}

// Writer appends framed samples to a record file. It is used by the data
// preparation tooling and by tests to synthesize fixtures.
type Writer struct {
	path string
	f    *os.File
	bw   *bufio.Writer
}

// Create truncates or creates the record file at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "records: create %s", path)
	}
	return &Writer{path: path, f: f, bw: bufio.NewWriter(f)}, nil
}

// Append frames and writes one sample.
func (w *Writer) Append(image []byte, label int) error {
	if label < 0 || label >= config.NumClasses {
		return errors.Errorf("records: label %d outside %d-class label space", label, config.NumClasses)
	}
	payload := make([]byte, 0, 1+len(image))
	payload = append(payload, byte(label))
	payload = append(payload, image...)

	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	if _, err := w.bw.Write(header[:]); err != nil {
		return errors.Wrapf(err, "records: %s: write frame header", w.path)
	}
	if _, err := w.bw.Write(payload); err != nil {
		return errors.Wrapf(err, "records: %s: write payload", w.path)
	}
	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(payload))
	if _, err := w.bw.Write(footer[:]); err != nil {
		return errors.Wrapf(err, "records: %s: write payload CRC", w.path)
	}
	return nil
}

// Close flushes buffered frames and releases the file.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		return errors.Wrapf(err, "records: %s: flush", w.path)
	}
	return w.f.Close()
}
