package form

import (
	"errors"
	"testing"
)

func TestResolveKnownProviders(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		provider string
		formID   string
	}{
		{
			name:     "microsoft response page",
			url:      "https://forms.office.com/Pages/ResponsePage.aspx?id=ABC123",
			provider: ProviderMicrosoft,
			formID:   "ABC123",
		},
		{
			name:     "microsoft id among other parameters",
			url:      "https://forms.office.com/Pages/ResponsePage.aspx?lang=ja&id=qi6vVm7-f0e&route=shorturl",
			provider: ProviderMicrosoft,
			formID:   "qi6vVm7-f0e",
		},
		{
			name:     "google published form",
			url:      "https://docs.google.com/forms/d/e/1FAIpQLSfBR1QRKw2D/viewform?usp=preview",
			provider: ProviderGoogle,
			formID:   "1FAIpQLSfBR1QRKw2D",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider, formID, err := Resolve(tc.url)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider != tc.provider {
				t.Fatalf("expected provider %q, got %q", tc.provider, provider)
			}
			if formID != tc.formID {
				t.Fatalf("expected formID %q, got %q", tc.formID, formID)
			}
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	url := "https://forms.office.com/Pages/ResponsePage.aspx?id=ABC123"
	p1, id1, err1 := Resolve(url)
	p2, id2, err2 := Resolve(url)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if p1 != p2 || id1 != id2 {
		t.Fatalf("resolve not deterministic: (%s,%s) vs (%s,%s)", p1, id1, p2, id2)
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	cases := []string{
		"https://example.com/forms/123",
		"https://docs.google.com/spreadsheets/d/abc",
		"https://forms.office.com/Pages/ResponsePage.aspx",
		"https://docs.google.com/forms/d/abc/viewform",
		"not a url at all ::",
		"",
	}

	for _, url := range cases {
		if _, _, err := Resolve(url); !errors.Is(err, ErrUnresolved) {
			t.Fatalf("expected ErrUnresolved for %q, got %v", url, err)
		}
	}
}
