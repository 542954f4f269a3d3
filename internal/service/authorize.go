package service

import (
	"context"
	"errors"
	"slices"

	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/repository"
)

// Authorize resolves the caller's profile once and checks its role.  An
// unknown subject or a role outside roles yields ErrRoleRequired; an empty
// identity yields ErrMissingIdentity.  With no roles any known profile
// passes.
func (m *Manager) Authorize(ctx context.Context, id model.Identity, roles ...model.Role) (model.User, error) {
	if id.Subject == "" {
		return model.User{}, ErrMissingIdentity
	}
	u, err := m.store.GetUserBySubject(ctx, id.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, ErrRoleRequired
	}
	if err != nil {
		return model.User{}, internal("authorize", err)
	}
	if len(roles) > 0 && !slices.Contains(roles, u.Role) {
		return model.User{}, ErrRoleRequired
	}
	return u, nil
}

// ResolveRequester maps an external identity to its internal profile,
// creating a bare one on first sight.
func (m *Manager) ResolveRequester(ctx context.Context, id model.Identity) (model.User, error) {
	if id.Subject == "" {
		return model.User{}, ErrMissingIdentity
	}
	u, err := m.store.EnsureUser(ctx, model.User{
		ExternalSubject: id.Subject,
		Email:           id.Email,
		Name:            id.Name,
		Role:            model.RoleFor(id.Email, m.policy.AdminEmails),
	})
	if err != nil {
		return model.User{}, internal("resolve requester", err)
	}
	return u, nil
}
