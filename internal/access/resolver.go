package access

import "strings"

// FilterLimit caps the number of entities returned by FilterEntities.
// The permission editor shows the remaining count instead of an
// unbounded list.
const FilterLimit = 100

// Grant scopes a role to domains and entities on one host. A nil axis is
// unrestricted; an empty non-nil axis permits nothing on that axis.
type Grant struct {
	ID       string   `json:"id,omitempty"`
	HostID   string   `json:"host_id,omitempty"`
	Domains  []string `json:"domains"`
	Entities []string `json:"entities"`
}

// permits reports whether this single grant allows the entity. Both axes
// must pass; grants are never combined before evaluation.
func (g Grant) permits(domain, entityID string) bool {
	if g.Domains != nil && !contains(g.Domains, domain) {
		return false
	}
	if g.Entities != nil && !contains(g.Entities, entityID) {
		return false
	}
	return true
}

// EntityDomain extracts the domain from a dotted entity identifier, for
// example "light" from "light.kitchen_ceiling". An identifier without a
// dot is its own domain.
func EntityDomain(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i >= 0 {
		return entityID[:i]
	}
	return entityID
}

// Resolver answers authorization questions for one user's effective
// grants. It is a pure value over an immutable grant set; build a new
// Resolver when the grants change.
type Resolver struct {
	grants []Grant
}

func NewResolver(grants []Grant) *Resolver {
	return &Resolver{grants: grants}
}

// AuthorizeEntity reports whether any single grant permits both the
// entity's domain and its identifier.
func (r *Resolver) AuthorizeEntity(entityID string) bool {
	domain := EntityDomain(entityID)
	for _, g := range r.grants {
		if g.permits(domain, entityID) {
			return true
		}
	}
	return false
}

// AllowsDomain reports whether the domain passes the domain axis of any
// grant. A grant with an entity restriction still counts: it can permit
// at least one entity in the domain.
func (r *Resolver) AllowsDomain(domain string) bool {
	for _, g := range r.grants {
		if g.Domains == nil || contains(g.Domains, domain) {
			return true
		}
	}
	return false
}

// PartitionDomains splits a host's domain catalog into the domains the
// resolver allows and those it denies, preserving catalog order.
func (r *Resolver) PartitionDomains(catalog []string) (allowed, denied []string) {
	for _, d := range catalog {
		if r.AllowsDomain(d) {
			allowed = append(allowed, d)
		} else {
			denied = append(denied, d)
		}
	}
	return allowed, denied
}

// FilterEntities returns catalog entries containing the query,
// case-insensitively, capped at FilterLimit. remaining is the count of
// matches beyond the cap, so the caller can show "and N more" truthfully.
// An empty query matches everything.
func FilterEntities(catalog []string, query string) (matches []string, remaining int) {
	q := strings.ToLower(query)
	for _, id := range catalog {
		if q != "" && !strings.Contains(strings.ToLower(id), q) {
			continue
		}
		if len(matches) < FilterLimit {
			matches = append(matches, id)
		} else {
			remaining++
		}
	}
	return matches, remaining
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
