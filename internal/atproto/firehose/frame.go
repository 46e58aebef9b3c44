// Package firehose implements the real AT Protocol firehose stream
// consumer (C5): a websocket connector with reconnect-and-backoff, a
// frame/commit decoder, and a fire-and-forget per-message worker model
// that feeds accepted posts into a batch writer and applies repost
// increments directly to storage.
package firehose

import "fmt"

// header is the first of the two back-to-back DAG-CBOR objects in every
// firehose websocket frame: {"op": 1|-1, "t": "#commit"|"#info"|...}.
// "op" is -1 for error frames, 1 otherwise; "t" names the message variant.
type header struct {
	Op   int64
	Type string
}

// splitFrame decodes the header object from the front of a raw websocket
// message and returns it alongside the remaining bytes, which hold the
// second CBOR object (the message body).
func splitFrame(raw []byte) (header, []byte, error) {
	d := newDecoder(raw)
	v, err := d.decodeValue()
	if err != nil {
		return header{}, nil, fmt.Errorf("firehose: decode frame header: %w", err)
	}

	m, ok := v.(map[string]interface{})
	if !ok {
		return header{}, nil, fmt.Errorf("firehose: frame header is not a map")
	}

	var h header
	if op, ok := m["op"].(uint64); ok {
		h.Op = int64(op)
	} else if op, ok := m["op"].(int64); ok {
		h.Op = op
	}
	if t, ok := m["t"].(string); ok {
		h.Type = t
	}

	return h, raw[d.pos:], nil
}

// isCommit reports whether the header identifies a repo commit message,
// per spec §4.5's "non-commits are ignored".
func (h header) isCommit() bool {
	return h.Op == 1 && h.Type == "#commit"
}
