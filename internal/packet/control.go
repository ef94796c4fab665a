package packet

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Control message bodies are short text, per spec §4.3: "ACK|<seq>",
// "PKT_MISSING|1,3,4". These helpers are the single place that
// formats/parses them so the session and segmentation layers never
// hand-roll the wire text.

// AckBody formats an ACK control body for the given sequence number.
func AckBody(seq uint16) []byte {
	return []byte(fmt.Sprintf("ACK|%d", seq))
}

// ParseAckBody extracts the acknowledged sequence number.
func ParseAckBody(body []byte) (uint16, error) {
	parts := strings.SplitN(string(body), "|", 2)
	if len(parts) != 2 || parts[0] != "ACK" {
		return 0, fmt.Errorf("packet: not an ACK body: %q", body)
	}
	n, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("packet: bad ACK seq in %q: %w", body, err)
	}
	return uint16(n), nil
}

// PktMissingBody formats a PKT_MISSING control body listing missing
// as a sorted ascending CSV.
func PktMissingBody(missing []int) []byte {
	sorted := append([]int(nil), missing...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = strconv.Itoa(n)
	}
	return []byte("PKT_MISSING|" + strings.Join(parts, ","))
}

// ParsePktMissingBody extracts the missing-sequence list.
func ParsePktMissingBody(body []byte) ([]int, error) {
	parts := strings.SplitN(string(body), "|", 2)
	if len(parts) != 2 || parts[0] != "PKT_MISSING" {
		return nil, fmt.Errorf("packet: not a PKT_MISSING body: %q", body)
	}
	if parts[1] == "" {
		return nil, nil
	}
	fields := strings.Split(parts[1], ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("packet: bad seq in PKT_MISSING body %q: %w", body, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// DataRequestBody formats a DATA_REQUEST control body: a one-byte
// request kind followed by opaque caller-supplied parameters, per
// spec §6's request_payload(handle, request_kind, params_bytes).
func DataRequestBody(kind byte, params []byte) []byte {
	out := make([]byte, 0, 1+len(params))
	out = append(out, kind)
	out = append(out, params...)
	return out
}

// ParseDataRequestBody splits a DATA_REQUEST body back into its kind
// byte and parameters.
func ParseDataRequestBody(body []byte) (kind byte, params []byte, err error) {
	if len(body) < 1 {
		return 0, nil, fmt.Errorf("packet: empty DATA_REQUEST body")
	}
	return body[0], body[1:], nil
}
