// Package policy implements the per-endpoint admit decision: which
// upstream identities, identified by fingerprint, a given downstream
// endpoint is allowed to see and sign with.
package policy

// Policy decides whether an identity, identified by its fingerprint, is
// visible and usable through one endpoint. It holds no mutable state
// after construction and is safe to share across goroutines.
type Policy struct {
	allow map[string]struct{}
	deny  map[string]struct{}
}

// New builds a Policy from allow and deny fingerprint lists. Both may be
// empty or nil; duplicates are harmless.
func New(allow, deny []string) Policy {
	p := Policy{
		allow: toSet(allow),
		deny:  toSet(deny),
	}
	return p
}

// Admit reports whether fingerprint is visible and usable through this
// policy's endpoint. Deny always wins over allow. An empty allow-set
// means "admit everything not denied"; a non-empty one restricts
// admission to its members.
func (p Policy) Admit(fingerprint string) bool {
	if _, denied := p.deny[fingerprint]; denied {
		return false
	}
	if len(p.allow) == 0 {
		return true
	}
	_, allowed := p.allow[fingerprint]
	return allowed
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
