package upstream

import (
	"net/url"
	"testing"
)

func TestParseHandoff(t *testing.T) {
	tests := []struct {
		name    string
		rawURL  string
		want    Handoff
		present bool
	}{
		{"token hand-off", "https://panel.local/?google_token=tok-1", Handoff{Token: "tok-1"}, true},
		{"pending approval", "https://panel.local/?google=pending", Handoff{Pending: true}, true},
		{"token wins over pending", "https://panel.local/?google_token=tok-1&google=pending", Handoff{Token: "tok-1"}, true},
		{"no hand-off", "https://panel.local/dashboard", Handoff{}, false},
		{"unrelated params", "https://panel.local/?foo=bar", Handoff{}, false},
		{"wrong pending value", "https://panel.local/?google=done", Handoff{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.rawURL)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, present := ParseHandoff(u)
			if got != tt.want || present != tt.present {
				t.Errorf("ParseHandoff() = %+v, %v; want %+v, %v", got, present, tt.want, tt.present)
			}
		})
	}
}

func TestStripHandoff(t *testing.T) {
	u, _ := url.Parse("https://panel.local/dashboard?google_token=tok-1&google=pending&tab=devices")
	clean := StripHandoff(u)

	q := clean.Query()
	if q.Get("google_token") != "" || q.Get("google") != "" {
		t.Errorf("hand-off params survive stripping: %q", clean.RawQuery)
	}
	if q.Get("tab") != "devices" {
		t.Error("unrelated params must survive stripping")
	}
	// The original is untouched; replacing the address is the caller's move.
	if u.Query().Get("google_token") != "tok-1" {
		t.Error("StripHandoff mutated its input")
	}
}
