package world

import "context"

// Identity is the tenant/auth tuple spec.md §6's AuthProvider collaborator
// resolves: environment, ownerId, projectId. Storage never calls this
// itself (SPEC_FULL.md's resolution of spec.md §9's open question (c));
// callers resolve an Identity and pass its fields into
// storage.CreateHookInput.
type Identity struct {
	Environment string
	OwnerID     string
	ProjectID   string
}

// AuthProvider is the external collaborator spec.md §1 places out of
// scope: authentication/tenant resolution. World only depends on this
// small interface, never a concrete implementation.
type AuthProvider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// StaticAuthProvider always resolves to the same Identity, matching
// spec.md §2's component table entry for Auth: "Static tenant identity."
// This is the default World wires when no AuthProvider is supplied; a
// real deployment injects a JWT-backed one (internal/authn) instead.
type StaticAuthProvider struct {
	Identity Identity
}

func (p StaticAuthProvider) Resolve(context.Context, string) (Identity, error) {
	return p.Identity, nil
}
