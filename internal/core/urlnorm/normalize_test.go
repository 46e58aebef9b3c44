package urlnorm

import "testing"

func TestNormalize_StripsTrackingParamsAndWWW(t *testing.T) {
	res, err := Normalize("https://www.nytimes.com/2024/01/15/world/article.html?utm_source=twitter&id=42", true)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if res.Host != "nytimes.com" {
		t.Errorf("host = %q, want nytimes.com", res.Host)
	}
	if res.URL != "https://nytimes.com/2024/01/15/world/article.html?id=42" {
		t.Errorf("url = %q", res.URL)
	}
}

func TestNormalize_PreservesUnrecognizedParams(t *testing.T) {
	res, err := Normalize("https://example.com/a?keep=1&utm_campaign=x&also=2", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.URL != "https://example.com/a?also=2&keep=1" {
		t.Errorf("url = %q", res.URL)
	}
}

func TestNormalize_ForcesHTTPS(t *testing.T) {
	res, err := Normalize("http://example.com/x", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.URL != "https://example.com/x" {
		t.Errorf("url = %q, want https scheme", res.URL)
	}
}

func TestNormalize_PathDefaultsToSlash(t *testing.T) {
	res, err := Normalize("https://example.com", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.URL != "https://example.com/" {
		t.Errorf("url = %q, want trailing slash", res.URL)
	}
}

func TestNormalize_DropsFragment(t *testing.T) {
	res, err := Normalize("https://example.com/a#section", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.URL != "https://example.com/a" {
		t.Errorf("url = %q, fragment should be dropped", res.URL)
	}
}

func TestNormalize_KeepsPortInURLButNotInHost(t *testing.T) {
	res, err := Normalize("https://example.com:8443/a", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Host != "example.com" {
		t.Errorf("host = %q, want example.com without port", res.Host)
	}
	if res.URL != "https://example.com:8443/a" {
		t.Errorf("url = %q, want port preserved", res.URL)
	}
}

func TestNormalize_RejectsRelativeURL(t *testing.T) {
	if _, err := Normalize("/just/a/path", true); err == nil {
		t.Error("expected error for relative URL")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	once, err := Normalize("https://WWW.Example.com/a/?utm_source=x&z=1&a=2", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := Normalize(once.URL, true)
	if err != nil {
		t.Fatalf("unexpected error on re-normalize: %v", err)
	}
	if once.URL != twice.URL || once.Host != twice.Host {
		t.Errorf("normalize not idempotent: %+v vs %+v", once, twice)
	}
}

func TestNormalize_NoTrackingStripWhenDisabled(t *testing.T) {
	res, err := Normalize("https://example.com/a?utm_source=x", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.URL != "https://example.com/a?utm_source=x" {
		t.Errorf("url = %q, tracking param should survive when stripping disabled", res.URL)
	}
}
