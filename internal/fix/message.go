package fix

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Message is an ordered set of tag=value fields. Insertion order is
// preserved on encode; setting an existing tag overwrites its value
// in place. Tag 35 is always present and always first.
type Message struct {
	tags   []int
	values map[int]string
}

// NewMessage creates a message of the given type
func NewMessage(msgType string) *Message {
	m := &Message{values: make(map[int]string)}
	m.Set(TagMsgType, msgType)
	return m
}

// Set stores a field value. Values must not contain the SOH delimiter;
// that is a caller contract, not a checked error.
func (m *Message) Set(tag int, value string) {
	if _, ok := m.values[tag]; !ok {
		m.tags = append(m.tags, tag)
	}
	m.values[tag] = value
}

// SetInt stores an integer field
func (m *Message) SetInt(tag, value int) {
	m.Set(tag, strconv.Itoa(value))
}

// SetDecimal stores a decimal field (prices, quantities)
func (m *Message) SetDecimal(tag int, value decimal.Decimal) {
	m.Set(tag, value.String())
}

// Get returns the field value, empty if absent
func (m *Message) Get(tag int) string {
	return m.values[tag]
}

// Has reports whether the field is present
func (m *Message) Has(tag int) bool {
	_, ok := m.values[tag]
	return ok
}

// GetInt parses the field as an integer
func (m *Message) GetInt(tag int) (int, error) {
	v, ok := m.values[tag]
	if !ok {
		return 0, fmt.Errorf("field %d missing", tag)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %d not an integer: %w", tag, err)
	}
	return n, nil
}

// GetDecimal parses the field as a decimal
func (m *Message) GetDecimal(tag int) (decimal.Decimal, error) {
	v, ok := m.values[tag]
	if !ok {
		return decimal.Zero, fmt.Errorf("field %d missing", tag)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %d not a decimal: %w", tag, err)
	}
	return d, nil
}

// Type returns the message type (tag 35)
func (m *Message) Type() string {
	return m.values[TagMsgType]
}

// Tags returns the field tags in insertion order
func (m *Message) Tags() []int {
	out := make([]int, len(m.tags))
	copy(out, m.tags)
	return out
}

// Encode serializes the message into a complete framed byte sequence.
// It injects MsgSeqNum and SendingTime, computes BodyLength over the
// body fields, and appends the three-digit CheckSum. BeginString,
// BodyLength and CheckSum set directly on the message are ignored.
func (m *Message) Encode(beginString string, seqNum int, sendingTime time.Time) []byte {
	m.SetInt(TagMsgSeqNum, seqNum)
	m.Set(TagSendingTime, sendingTime.UTC().Format(TimestampFormat))

	var body bytes.Buffer
	for _, tag := range m.tags {
		if tag == TagBeginString || tag == TagBodyLength || tag == TagCheckSum {
			continue
		}
		body.WriteString(strconv.Itoa(tag))
		body.WriteByte('=')
		body.WriteString(m.values[tag])
		body.WriteByte(SOH)
	}

	var out bytes.Buffer
	out.WriteString("8=")
	out.WriteString(beginString)
	out.WriteByte(SOH)
	out.WriteString("9=")
	out.WriteString(strconv.Itoa(body.Len()))
	out.WriteByte(SOH)
	out.Write(body.Bytes())
	fmt.Fprintf(&out, "10=%03d", checksum(out.Bytes()))
	out.WriteByte(SOH)
	return out.Bytes()
}

// Decode parses a raw frame into a message. Segments whose tag does
// not parse as a non-negative integer are skipped. A frame without
// tag 35 yields a message with an empty type; callers treat that as
// a no-op. Checksum and body length are not verified here; see
// Validate for the strict mode.
func Decode(raw []byte) *Message {
	parts := bytes.Split(raw, []byte{SOH})

	msgType := ""
	for _, part := range parts {
		if bytes.HasPrefix(part, []byte("35=")) {
			msgType = string(part[3:])
			break
		}
	}

	m := NewMessage(msgType)
	for _, part := range parts {
		eq := bytes.IndexByte(part, '=')
		if eq < 1 {
			continue
		}
		tag, err := strconv.Atoi(string(part[:eq]))
		if err != nil || tag < 0 {
			continue
		}
		m.Set(tag, string(part[eq+1:]))
	}
	return m
}

// String renders the message for logs with SOH shown as '|'
func (m *Message) String() string {
	var b strings.Builder
	for _, tag := range m.tags {
		fmt.Fprintf(&b, "%d=%s|", tag, m.values[tag])
	}
	return b.String()
}

// Readable renders a raw frame for logs with SOH shown as '|'
func Readable(raw []byte) string {
	return strings.ReplaceAll(string(raw), string(rune(SOH)), "|")
}

// checksum is the sum of all byte values modulo 256
func checksum(data []byte) int {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return sum % 256
}
