package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	app "storefront/src/app"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresTokenStore keeps principals and tokens in the principals and
// personal_access_tokens tables.
type PostgresTokenStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ TokenStore = (*PostgresTokenStore)(nil)

func NewPostgresTokenStore(db *sqlx.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db, now: time.Now}
}

func (s *PostgresTokenStore) Connect() bool {
	return s.db.Ping() == nil
}

func (s *PostgresTokenStore) SavePrincipal(ctx context.Context, p app.Principal) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO principals (id, name, email, picture)
		VALUES (:id, :name, :email, :picture)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, picture = EXCLUDED.picture
	`, p)
	if err != nil {
		return fmt.Errorf("save principal %s: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresTokenStore) IssueToken(ctx context.Context, principalID, name string, abilities []string, ttl time.Duration) (string, app.AccessToken, error) {
	plain, err := NewPlainToken()
	if err != nil {
		return "", app.AccessToken{}, err
	}
	token := newAccessToken(0, principalID, name, abilities, ttl, s.now().UTC())

	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO personal_access_tokens (principal_id, name, token, abilities, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, token.PrincipalID, token.Name, HashToken(plain), pq.Array(token.Abilities), token.ExpiresAt, token.CreatedAt).Scan(&token.ID)
	if err != nil {
		return "", app.AccessToken{}, fmt.Errorf("issue token for %s: %w", principalID, err)
	}
	return plain, token, nil
}

type tokenRow struct {
	app.AccessToken
	Abilities pq.StringArray `db:"abilities"`
	Principal app.Principal  `db:"principal"`
}

func (s *PostgresTokenStore) FindToken(ctx context.Context, plain string) (app.Principal, app.AccessToken, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row, `
		SELECT t.id, t.principal_id, t.name, t.abilities, t.last_used_at, t.expires_at, t.created_at,
		       p.id AS "principal.id", p.name AS "principal.name",
		       p.email AS "principal.email", p.picture AS "principal.picture"
		FROM personal_access_tokens t
		JOIN principals p ON p.id = t.principal_id
		WHERE t.token = $1
	`, HashToken(plain))
	if errors.Is(err, sql.ErrNoRows) {
		return app.Principal{}, app.AccessToken{}, ErrTokenNotFound
	}
	if err != nil {
		return app.Principal{}, app.AccessToken{}, fmt.Errorf("find token: %w", err)
	}

	token := row.AccessToken
	token.Abilities = []string(row.Abilities)
	now := s.now().UTC()
	if token.Expired(now) {
		return app.Principal{}, app.AccessToken{}, ErrTokenNotFound
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE personal_access_tokens SET last_used_at = $2 WHERE id = $1`, token.ID, now); err != nil {
		return app.Principal{}, app.AccessToken{}, fmt.Errorf("touch token %d: %w", token.ID, err)
	}
	token.LastUsedAt = &now
	return row.Principal, token, nil
}

func (s *PostgresTokenStore) RevokeToken(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM personal_access_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoke token %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrTokenNotFound
	}
	return nil
}
