package ranking

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// cursorToken is the decoded form of a pagination cursor: the score and
// URI of the last item emitted on the previous page.
type cursorToken struct {
	Score float64
	URI   string
}

// encodeCursor implements spec §4.6 / §9's wire format: base64 of the
// UTF-8 bytes of "<score>::<uri>". This format is part of the feed
// service's external contract and must not change.
func encodeCursor(t cursorToken) string {
	raw := strconv.FormatFloat(t.Score, 'g', -1, 64) + "::" + t.URI
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// decodeCursor parses a cursor token. A malformed or undecodable cursor is
// reported via the second return value; callers must treat that as "no
// cursor supplied" rather than an error, per spec §4.6 step 1 and the
// client-error tolerance in §7.
func decodeCursor(cursor string) (cursorToken, bool) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return cursorToken{}, false
	}
	parts := strings.SplitN(string(raw), "::", 2)
	if len(parts) != 2 {
		return cursorToken{}, false
	}
	score, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return cursorToken{}, false
	}
	if parts[1] == "" {
		return cursorToken{}, false
	}
	return cursorToken{Score: score, URI: parts[1]}, true
}
