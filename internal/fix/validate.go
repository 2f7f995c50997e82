package fix

import (
	"bytes"
	"fmt"
	"strconv"
)

// Validate strictly checks an encoded frame: BeginString first,
// BodyLength matching the body bytes, and a correct three-digit
// CheckSum as the final field. The inbound path stays lenient and
// never calls this; it exists for callers that want the stricter
// contract.
func Validate(raw []byte) error {
	if len(raw) == 0 || raw[len(raw)-1] != SOH {
		return fmt.Errorf("frame does not end with delimiter")
	}
	if !bytes.HasPrefix(raw, []byte("8=")) {
		return fmt.Errorf("frame does not start with BeginString")
	}

	headerEnd := bytes.IndexByte(raw, SOH)
	if headerEnd < 0 || headerEnd+1 >= len(raw) {
		return fmt.Errorf("truncated frame")
	}
	lengthField := raw[headerEnd+1:]
	lengthEnd := bytes.IndexByte(lengthField, SOH)
	if lengthEnd < 0 || !bytes.HasPrefix(lengthField, []byte("9=")) {
		return fmt.Errorf("BodyLength field missing")
	}
	declared, err := strconv.Atoi(string(lengthField[2:lengthEnd]))
	if err != nil || declared < 0 {
		return fmt.Errorf("BodyLength not a non-negative integer")
	}

	// The checksum field is the last field of the frame
	trailerStart := bytes.LastIndex(raw, []byte("10="))
	if trailerStart <= 0 || raw[trailerStart-1] != SOH {
		return fmt.Errorf("CheckSum field missing")
	}

	bodyStart := headerEnd + 1 + lengthEnd + 1
	if body := trailerStart - bodyStart; body != declared {
		return fmt.Errorf("BodyLength mismatch: declared %d, actual %d", declared, body)
	}

	want := fmt.Sprintf("%03d", checksum(raw[:trailerStart]))
	got := string(raw[trailerStart+3 : len(raw)-1])
	if got != want {
		return fmt.Errorf("CheckSum mismatch: declared %s, computed %s", got, want)
	}
	return nil
}
