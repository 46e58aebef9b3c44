package firehose

import "testing"

func TestIsLinkBearing_ExternalEmbed(t *testing.T) {
	rec := map[string]interface{}{
		"text": "check this out",
		"embed": map[string]interface{}{
			"$type":    "app.bsky.embed.external",
			"external": map[string]interface{}{"uri": "https://example.com/a"},
		},
	}
	if !isLinkBearing(rec) {
		t.Error("expected external embed to be link-bearing")
	}
}

func TestIsLinkBearing_RecordWithMediaExternal(t *testing.T) {
	rec := map[string]interface{}{
		"embed": map[string]interface{}{
			"$type": "app.bsky.embed.recordWithMedia",
			"media": map[string]interface{}{
				"$type":    "app.bsky.embed.external",
				"external": map[string]interface{}{"uri": "https://example.com/a"},
			},
		},
	}
	if !isLinkBearing(rec) {
		t.Error("expected recordWithMedia+external to be link-bearing")
	}
}

func TestIsLinkBearing_FacetLink(t *testing.T) {
	rec := map[string]interface{}{
		"facets": []interface{}{
			map[string]interface{}{
				"features": []interface{}{
					map[string]interface{}{"$type": "app.bsky.richtext.facet#link"},
				},
			},
		},
	}
	if !isLinkBearing(rec) {
		t.Error("expected facet link to be link-bearing")
	}
}

func TestIsLinkBearing_LegacyEntity(t *testing.T) {
	rec := map[string]interface{}{
		"entities": []interface{}{
			map[string]interface{}{"type": "link"},
		},
	}
	if !isLinkBearing(rec) {
		t.Error("expected legacy link entity to be link-bearing")
	}
}

func TestIsLinkBearing_RawTextURL(t *testing.T) {
	rec := map[string]interface{}{"text": "see https://example.com"}
	if !isLinkBearing(rec) {
		t.Error("expected raw text URL to be link-bearing")
	}
}

func TestIsLinkBearing_ImagesOnlyIsRejected(t *testing.T) {
	rec := map[string]interface{}{
		"text":  "just a photo",
		"embed": map[string]interface{}{"$type": "app.bsky.embed.images"},
	}
	if isLinkBearing(rec) {
		t.Error("expected image-only embed with no URL in text to be rejected")
	}
}

func TestExtractExternalURL_DirectEmbed(t *testing.T) {
	rec := map[string]interface{}{
		"embed": map[string]interface{}{
			"$type":    "app.bsky.embed.external",
			"external": map[string]interface{}{"uri": "https://nytimes.com/a"},
		},
	}
	uri, ok := extractExternalURL(rec)
	if !ok || uri != "https://nytimes.com/a" {
		t.Errorf("got (%q, %v), want (\"https://nytimes.com/a\", true)", uri, ok)
	}
}

func TestExtractExternalURL_RecordWithMedia(t *testing.T) {
	rec := map[string]interface{}{
		"embed": map[string]interface{}{
			"$type": "app.bsky.embed.recordWithMedia",
			"media": map[string]interface{}{
				"$type":    "app.bsky.embed.external",
				"external": map[string]interface{}{"uri": "https://nytimes.com/b"},
			},
		},
	}
	uri, ok := extractExternalURL(rec)
	if !ok || uri != "https://nytimes.com/b" {
		t.Errorf("got (%q, %v), want (\"https://nytimes.com/b\", true)", uri, ok)
	}
}

func TestExtractExternalURL_ImagesEmbedYieldsNothing(t *testing.T) {
	rec := map[string]interface{}{
		"embed": map[string]interface{}{"$type": "app.bsky.embed.images"},
	}
	if _, ok := extractExternalURL(rec); ok {
		t.Error("expected no URL extracted from an images embed even if link-bearing by raw text")
	}
}

func TestRepostSubjectURI(t *testing.T) {
	rec := map[string]interface{}{
		"subject": map[string]interface{}{"uri": "at://did:plc:userA/app.bsky.feed.post/a1"},
	}
	uri, ok := repostSubjectURI(rec)
	if !ok || uri != "at://did:plc:userA/app.bsky.feed.post/a1" {
		t.Errorf("got (%q, %v)", uri, ok)
	}
}

func TestDecodeCommit_ExtractsRepoTimeAndOps(t *testing.T) {
	opMap := cborHead(5, 2)
	opMap = append(opMap, cborTextString("action")...)
	opMap = append(opMap, cborTextString("create")...)
	opMap = append(opMap, cborTextString("path")...)
	opMap = append(opMap, cborTextString("app.bsky.feed.post/a1")...)

	opsArray := cborHead(4, 1)
	opsArray = append(opsArray, opMap...)

	body := cborHead(5, 3)
	body = append(body, cborTextString("repo")...)
	body = append(body, cborTextString("did:plc:test")...)
	body = append(body, cborTextString("time")...)
	body = append(body, cborTextString("2024-01-15T10:00:00Z")...)
	body = append(body, cborTextString("ops")...)
	body = append(body, opsArray...)

	c, err := decodeCommit(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Repo != "did:plc:test" {
		t.Errorf("repo = %q", c.Repo)
	}
	if len(c.Ops) != 1 || c.Ops[0].Path != "app.bsky.feed.post/a1" || c.Ops[0].Action != "create" {
		t.Errorf("ops = %+v", c.Ops)
	}
	if c.Ops[0].collection() != "app.bsky.feed.post" {
		t.Errorf("collection = %q", c.Ops[0].collection())
	}
}
