package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
)

type identitiesRepo struct {
	db dbtx
}

const identityColumns = `id, email, credential_hash, status, created_at, updated_at`

func (r *identitiesRepo) CreateIdentity(ctx context.Context, i domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.Email, i.CredentialHash, string(i.Status), toUnix(i.CreatedAt), toUnix(i.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return r.scanWithRoles(ctx, row)
}

func (r *identitiesRepo) GetIdentityByEmail(ctx context.Context, email string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities
		 WHERE email = ? COLLATE NOCASE AND status <> 'Rejected'`, email)
	return r.scanWithRoles(ctx, row)
}

func (r *identitiesRepo) TransitionStatus(
	ctx context.Context,
	id string,
	from []domain.Status,
	to domain.Status,
	at time.Time,
) (bool, error) {
	args := make([]any, 0, len(from)+3)
	args = append(args, string(to), toUnix(at), id)
	for _, s := range from {
		args = append(args, string(s))
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE identities SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN (`+inClause(len(from))+`)`, args...)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *identitiesRepo) UpdateCredentialHash(
	ctx context.Context,
	id string,
	allowed []domain.Status,
	hash string,
	at time.Time,
) (bool, error) {
	args := make([]any, 0, len(allowed)+3)
	args = append(args, hash, toUnix(at), id)
	for _, s := range allowed {
		args = append(args, string(s))
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE identities SET credential_hash = ?, updated_at = ?
		 WHERE id = ? AND status IN (`+inClause(len(allowed))+`)`, args...)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *identitiesRepo) GrantRole(ctx context.Context, id, roleCode string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO identity_roles (identity_id, role_code, granted_at) VALUES (?, ?, ?)`,
		id, roleCode, toUnix(at))
	return err
}

func (r *identitiesRepo) ListRoleCodes(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role_code FROM identity_roles WHERE identity_id = ? ORDER BY role_code`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(s scanner) (domain.Identity, error) {
	var (
		i                    domain.Identity
		status               string
		createdAt, updatedAt int64
	)
	if err := s.Scan(&i.ID, &i.Email, &i.CredentialHash, &status, &createdAt, &updatedAt); err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	i.Status = domain.Status(status)
	i.CreatedAt = fromUnix(createdAt)
	i.UpdatedAt = fromUnix(updatedAt)
	return i, nil
}

func (r *identitiesRepo) scanWithRoles(ctx context.Context, row scanner) (domain.Identity, error) {
	i, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, err
	}
	if i.Roles, err = r.ListRoleCodes(ctx, i.ID); err != nil {
		return domain.Identity{}, err
	}
	return i, nil
}
