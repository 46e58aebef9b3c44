package ranking

import "testing"

func TestCursor_RoundTrip(t *testing.T) {
	original := cursorToken{Score: 12.3456, URI: "at://did:plc:userA/app.bsky.feed.post/a1"}
	encoded := encodeCursor(original)

	decoded, ok := decodeCursor(encoded)
	if !ok {
		t.Fatal("expected successful decode")
	}
	if decoded.URI != original.URI {
		t.Errorf("uri = %q, want %q", decoded.URI, original.URI)
	}
	if decoded.Score < original.Score-1e-9 || decoded.Score > original.Score+1e-9 {
		t.Errorf("score = %v, want %v", decoded.Score, original.Score)
	}
}

func TestCursor_MalformedIsTolerated(t *testing.T) {
	if _, ok := decodeCursor("not-valid-base64!!!"); ok {
		t.Error("expected decode failure for invalid base64")
	}
	if _, ok := decodeCursor(""); ok {
		t.Error("expected decode failure for empty cursor")
	}

	missingSeparator := "aGVsbG8gd29ybGQ=" // base64("hello world"), no "::"
	if _, ok := decodeCursor(missingSeparator); ok {
		t.Error("expected decode failure when separator is missing")
	}
}
