package repository

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	app "storefront/src/app"
	cfg "storefront/src/configuration"

	"github.com/jmoiron/sqlx"
)

var (
	ErrTokenNotFound = errors.New("access token not found")
	ErrNotFound      = errors.New("record not found")
)

type (
	// TokenStore keeps principals and the access tokens issued to them.
	// Only a digest of each plain-text token is kept.
	TokenStore interface {
		SavePrincipal(ctx context.Context, p app.Principal) error
		IssueToken(ctx context.Context, principalID, name string, abilities []string, ttl time.Duration) (plain string, token app.AccessToken, err error)
		FindToken(ctx context.Context, plain string) (app.Principal, app.AccessToken, error)
		RevokeToken(ctx context.Context, id int64) error
		Connect() bool
	}

	InMemoryDB struct {
		mu         sync.RWMutex
		principals map[string]app.Principal
		tokens     map[string]app.AccessToken
		nextID     int64
		now        func() time.Time
	}
)

// NewAuthDataBase returns the postgres store when a DSN is configured and the
// in-memory store otherwise.
func NewAuthDataBase(config *cfg.Properties, db *sqlx.DB) (TokenStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config is not valid")
	}
	if db != nil {
		return NewPostgresTokenStore(db), nil
	}
	return &InMemoryDB{}, nil
}

func (i *InMemoryDB) Connect() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.tokens == nil {
		i.tokens = make(map[string]app.AccessToken)
		i.principals = make(map[string]app.Principal)
	}
	if i.now == nil {
		i.now = time.Now
	}
	return true
}

func (i *InMemoryDB) SavePrincipal(_ context.Context, p app.Principal) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.principals == nil {
		return fmt.Errorf("can not save principal, connection is off")
	}
	i.principals[p.ID] = p
	return nil
}

func (i *InMemoryDB) IssueToken(_ context.Context, principalID, name string, abilities []string, ttl time.Duration) (string, app.AccessToken, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.tokens == nil {
		return "", app.AccessToken{}, fmt.Errorf("can not issue token, connection is off")
	}
	if _, ok := i.principals[principalID]; !ok {
		return "", app.AccessToken{}, fmt.Errorf("principal %q: %w", principalID, ErrNotFound)
	}
	plain, err := NewPlainToken()
	if err != nil {
		return "", app.AccessToken{}, err
	}
	i.nextID++
	token := newAccessToken(i.nextID, principalID, name, abilities, ttl, i.now())
	i.tokens[HashToken(plain)] = token
	return plain, token, nil
}

func (i *InMemoryDB) FindToken(_ context.Context, plain string) (app.Principal, app.AccessToken, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.tokens == nil {
		return app.Principal{}, app.AccessToken{}, ErrTokenNotFound
	}
	key := HashToken(plain)
	token, ok := i.tokens[key]
	if !ok {
		return app.Principal{}, app.AccessToken{}, ErrTokenNotFound
	}
	now := i.now()
	if token.Expired(now) {
		return app.Principal{}, app.AccessToken{}, ErrTokenNotFound
	}
	principal, ok := i.principals[token.PrincipalID]
	if !ok {
		return app.Principal{}, app.AccessToken{}, ErrTokenNotFound
	}
	token.LastUsedAt = &now
	i.tokens[key] = token
	return principal, token, nil
}

func (i *InMemoryDB) RevokeToken(_ context.Context, id int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for key, token := range i.tokens {
		if token.ID == id {
			delete(i.tokens, key)
			return nil
		}
	}
	return ErrTokenNotFound
}

// NewPlainToken returns 40 random bytes, hex encoded.
func NewPlainToken() (string, error) {
	b := make([]byte, 40)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func newAccessToken(id int64, principalID, name string, abilities []string, ttl time.Duration, now time.Time) app.AccessToken {
	token := app.AccessToken{
		ID:          id,
		PrincipalID: principalID,
		Name:        name,
		Abilities:   append([]string{}, abilities...),
		CreatedAt:   now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		token.ExpiresAt = &expires
	}
	return token
}
