package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
)

type accreditationsRepo struct {
	db dbtx
}

const requestColumns = `id, requester_identity_id, requested_role_code, status,
	created_at, decided_at, approver_id, rejection_note`

func (r *accreditationsRepo) CreateRequest(ctx context.Context, req domain.AccreditationRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accreditation_requests (id, requester_identity_id, requested_role_code, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.RequesterIdentityID, req.RequestedRoleCode, string(req.Status), toUnix(req.CreatedAt),
	)
	return err
}

func (r *accreditationsRepo) GetRequestByID(ctx context.Context, id string) (domain.AccreditationRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM accreditation_requests WHERE id = ?`, id)
	return scanRequest(row)
}

func (r *accreditationsRepo) DecidePending(
	ctx context.Context,
	id string,
	status domain.RequestStatus,
	approverID string,
	note *string,
	at time.Time,
) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accreditation_requests
		 SET status = ?, decided_at = ?, approver_id = ?, rejection_note = ?
		 WHERE id = ? AND status = 'Pending'`,
		string(status), toUnix(at), approverID, mapOptionalString(note), id,
	)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (r *accreditationsRepo) ListPending(ctx context.Context, limit int) ([]domain.AccreditationRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM accreditation_requests
		 WHERE status = 'Pending' ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AccreditationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *accreditationsRepo) CountPendingForRequester(ctx context.Context, identityID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accreditation_requests WHERE status = 'Pending' AND requester_identity_id = ?`,
		identityID,
	).Scan(&n)
	return n, err
}

func (r *accreditationsRepo) CountPendingCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accreditation_requests WHERE status = 'Pending' AND created_at < ?`,
		toUnix(cutoff),
	).Scan(&n)
	return n, err
}

func scanRequest(s scanner) (domain.AccreditationRequest, error) {
	var (
		req       domain.AccreditationRequest
		status    string
		createdAt int64
		decidedAt sql.NullInt64
		approver  sql.NullString
		note      sql.NullString
	)
	err := s.Scan(&req.ID, &req.RequesterIdentityID, &req.RequestedRoleCode, &status,
		&createdAt, &decidedAt, &approver, &note)
	if err != nil {
		return domain.AccreditationRequest{}, mapNotFound(err)
	}
	req.Status = domain.RequestStatus(status)
	req.CreatedAt = fromUnix(createdAt)
	req.DecidedAt = mapNullTimePtr(decidedAt)
	req.ApproverID = mapNullStringPtr(approver)
	req.RejectionNote = mapNullStringPtr(note)
	return req, nil
}
