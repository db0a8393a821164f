package access

import (
	"fmt"
	"testing"
)

func TestEntityDomain(t *testing.T) {
	tests := []struct {
		entityID string
		want     string
	}{
		{"light.kitchen_ceiling", "light"},
		{"switch.hall", "switch"},
		{"sensor.outdoor.temp", "sensor"},
		{"standalone", "standalone"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := EntityDomain(tt.entityID); got != tt.want {
			t.Errorf("EntityDomain(%q) = %q, want %q", tt.entityID, got, tt.want)
		}
	}
}

func TestAuthorizeEntityUnionAcrossGrants(t *testing.T) {
	// Two orthogonal grants: one pins specific entities with no domain
	// restriction, the other opens a whole domain. Each entity only needs
	// one grant to pass both axes.
	r := NewResolver([]Grant{
		{Domains: nil, Entities: []string{"light.a"}},
		{Domains: []string{"switch"}, Entities: nil},
	})

	tests := []struct {
		entityID string
		want     bool
	}{
		{"light.a", true},
		{"light.b", false},
		{"switch.anything", true},
		{"switch.other", true},
		{"sensor.temp", false},
	}
	for _, tt := range tests {
		if got := r.AuthorizeEntity(tt.entityID); got != tt.want {
			t.Errorf("AuthorizeEntity(%q) = %v, want %v", tt.entityID, got, tt.want)
		}
	}
}

func TestAuthorizeEntityAxesAreConjunctive(t *testing.T) {
	// A single grant must permit both axes; the entity list does not
	// override a mismatched domain list.
	r := NewResolver([]Grant{
		{Domains: []string{"light"}, Entities: []string{"switch.hall"}},
	})
	if r.AuthorizeEntity("switch.hall") {
		t.Error("entity permitted despite domain axis mismatch")
	}
	if r.AuthorizeEntity("light.kitchen") {
		t.Error("entity permitted despite entity axis mismatch")
	}
}

func TestAuthorizeEntityEmptyAxes(t *testing.T) {
	unrestricted := NewResolver([]Grant{{}})
	if !unrestricted.AuthorizeEntity("light.a") {
		t.Error("grant with nil axes should permit everything")
	}

	closed := NewResolver([]Grant{{Domains: []string{}, Entities: []string{}}})
	if closed.AuthorizeEntity("light.a") {
		t.Error("grant with empty axes should permit nothing")
	}

	none := NewResolver(nil)
	if none.AuthorizeEntity("light.a") {
		t.Error("empty grant set should permit nothing")
	}
}

func TestPartitionDomains(t *testing.T) {
	r := NewResolver([]Grant{
		{Domains: []string{"light", "cover"}},
	})
	catalog := []string{"switch", "light", "sensor", "cover"}
	allowed, denied := r.PartitionDomains(catalog)

	wantAllowed := []string{"light", "cover"}
	wantDenied := []string{"switch", "sensor"}
	if !equal(allowed, wantAllowed) {
		t.Errorf("allowed = %v, want %v", allowed, wantAllowed)
	}
	if !equal(denied, wantDenied) {
		t.Errorf("denied = %v, want %v", denied, wantDenied)
	}
}

func TestPartitionDomainsEntityRestrictedGrant(t *testing.T) {
	// An entity-restricted grant with an open domain axis still admits
	// every domain: it can permit at least one entity in each.
	r := NewResolver([]Grant{
		{Entities: []string{"light.a"}},
	})
	allowed, denied := r.PartitionDomains([]string{"light", "switch"})
	if len(denied) != 0 {
		t.Errorf("denied = %v, want none", denied)
	}
	if len(allowed) != 2 {
		t.Errorf("allowed = %v, want both domains", allowed)
	}
}

func TestFilterEntities(t *testing.T) {
	catalog := []string{
		"light.Kitchen_Ceiling",
		"light.hall",
		"switch.kitchen_plug",
		"sensor.outdoor_temp",
	}

	tests := []struct {
		query         string
		want          []string
		wantRemaining int
	}{
		{"kitchen", []string{"light.Kitchen_Ceiling", "switch.kitchen_plug"}, 0},
		{"KITCHEN", []string{"light.Kitchen_Ceiling", "switch.kitchen_plug"}, 0},
		{"", catalog, 0},
		{"nomatch", nil, 0},
	}
	for _, tt := range tests {
		got, remaining := FilterEntities(catalog, tt.query)
		if !equal(got, tt.want) {
			t.Errorf("FilterEntities(%q) = %v, want %v", tt.query, got, tt.want)
		}
		if remaining != tt.wantRemaining {
			t.Errorf("FilterEntities(%q) remaining = %d, want %d", tt.query, remaining, tt.wantRemaining)
		}
	}
}

func TestFilterEntitiesCap(t *testing.T) {
	catalog := make([]string, 0, FilterLimit+25)
	for i := 0; i < FilterLimit+25; i++ {
		catalog = append(catalog, fmt.Sprintf("light.fixture_%03d", i))
	}

	got, remaining := FilterEntities(catalog, "fixture")
	if len(got) != FilterLimit {
		t.Errorf("len(matches) = %d, want %d", len(got), FilterLimit)
	}
	if remaining != 25 {
		t.Errorf("remaining = %d, want 25", remaining)
	}
	// Cap keeps catalog order: the first FilterLimit matches survive.
	if got[0] != "light.fixture_000" || got[FilterLimit-1] != fmt.Sprintf("light.fixture_%03d", FilterLimit-1) {
		t.Errorf("unexpected boundary entries: first=%q last=%q", got[0], got[len(got)-1])
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
