package sqlite

import (
	"context"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) GetRoleByCode(ctx context.Context, code string) (domain.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT code, name, scopes, created_at FROM roles WHERE code = ?`, code)
	return scanRole(row)
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT code, name, scopes, created_at FROM roles ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func scanRole(s scanner) (domain.Role, error) {
	var (
		role      domain.Role
		scopes    string
		createdAt int64
	)
	if err := s.Scan(&role.Code, &role.Name, &scopes, &createdAt); err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	role.Scopes = splitAndFilter(scopes)
	role.CreatedAt = fromUnix(createdAt)
	return role, nil
}
