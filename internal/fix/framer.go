package fix

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
)

// Framer extracts complete FIX frames from a byte stream. When the
// stream opens with a well-formed BeginString/BodyLength header the
// framer reads exactly the declared body bytes plus the checksum
// field. Otherwise it falls back to scanning for a "10=" field
// followed by the trailing delimiter, matching the lenient behavior
// the codec was originally specified against.
type Framer struct {
	r *bufio.Reader
}

// NewFramer wraps a byte stream
func NewFramer(r io.Reader) *Framer {
	return &Framer{r: bufio.NewReader(r)}
}

// maxBodyLength caps the declared body length the framer will
// allocate for. A peer claiming more falls through to the scanning
// path instead of forcing an arbitrary allocation.
const maxBodyLength = 1 << 16

// ReadMessage blocks until one complete frame is available and
// returns its raw bytes, delimiter included.
func (f *Framer) ReadMessage() ([]byte, error) {
	first, err := f.readField()
	if err != nil {
		return nil, err
	}
	buf := append([]byte(nil), first...)

	if bytes.HasPrefix(first, []byte("8=")) {
		second, err := f.readField()
		if err != nil {
			return nil, err
		}
		buf = append(buf, second...)

		if n, ok := parseBodyLength(second); ok {
			body := make([]byte, n)
			if _, err := io.ReadFull(f.r, body); err != nil {
				return nil, err
			}
			buf = append(buf, body...)

			trailer, err := f.readField()
			if err != nil {
				return nil, err
			}
			return append(buf, trailer...), nil
		}
	}

	// Fallback: a frame is complete once the buffer contains "10="
	// and ends with the delimiter.
	for {
		if len(buf) > 0 && buf[len(buf)-1] == SOH && bytes.Contains(buf, []byte("10=")) {
			return buf, nil
		}
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
	}
}

// readField reads one tag=value field including its trailing SOH
func (f *Framer) readField() ([]byte, error) {
	field, err := f.r.ReadBytes(SOH)
	if err != nil {
		return nil, err
	}
	return field, nil
}

// parseBodyLength extracts the declared length from a "9=N<SOH>" field
func parseBodyLength(field []byte) (int, bool) {
	if !bytes.HasPrefix(field, []byte("9=")) || len(field) < 4 {
		return 0, false
	}
	n, err := strconv.Atoi(string(field[2 : len(field)-1]))
	if err != nil || n < 0 || n > maxBodyLength {
		return 0, false
	}
	return n, true
}
