package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
)

type tokensRepo struct {
	db dbtx
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (id, token_hash, purpose, subject_identity_id, issued_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.TokenHash, string(t.Purpose), t.SubjectIdentityID, toUnix(t.IssuedAt), toUnix(t.ExpiresAt),
	)
	return err
}

func (r *tokensRepo) ConsumeToken(
	ctx context.Context,
	hash string,
	purpose domain.Purpose,
	now time.Time,
) (string, error) {
	var subject string
	err := r.db.QueryRowContext(ctx,
		`UPDATE tokens SET used_at = ?
		 WHERE token_hash = ? AND purpose = ? AND used_at IS NULL AND expires_at >= ?
		 RETURNING subject_identity_id`,
		toUnix(now), hash, string(purpose), toUnix(now),
	).Scan(&subject)
	if err != nil {
		return "", mapNotFound(err)
	}
	return subject, nil
}

func (r *tokensRepo) GetTokenByHash(ctx context.Context, hash string) (domain.Token, error) {
	var (
		t                   domain.Token
		purpose             string
		issuedAt, expiresAt int64
		usedAt              sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, token_hash, purpose, subject_identity_id, issued_at, expires_at, used_at
		 FROM tokens WHERE token_hash = ?`, hash,
	).Scan(&t.ID, &t.TokenHash, &purpose, &t.SubjectIdentityID, &issuedAt, &expiresAt, &usedAt)
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}
	t.Purpose = domain.Purpose(purpose)
	t.IssuedAt = fromUnix(issuedAt)
	t.ExpiresAt = fromUnix(expiresAt)
	t.UsedAt = mapNullTimePtr(usedAt)
	return t, nil
}

func (r *tokensRepo) CountIssuedForEmail(
	ctx context.Context,
	email string,
	purpose domain.Purpose,
	since, until time.Time,
) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tokens t
		 JOIN identities i ON i.id = t.subject_identity_id
		 WHERE i.email = ? COLLATE NOCASE
		   AND t.purpose = ?
		   AND t.issued_at BETWEEN ? AND ?`,
		email, string(purpose), toUnix(since), toUnix(until),
	).Scan(&n)
	return n, err
}

func (r *tokensRepo) DeleteTokensExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < ?`, toUnix(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
