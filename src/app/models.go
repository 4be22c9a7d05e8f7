package app

import (
	"time"

	"github.com/shopspring/decimal"
)

// Principal is an authenticated actor.
type Principal struct {
	// Unique principal ID, the OIDC subject for users who signed in.
	ID string `json:"id" db:"id"`

	Name string `json:"name" db:"name"`

	Email string `json:"email" db:"email"`

	Picture string `json:"picture" db:"picture"`
}

// AccessToken is a credential bound to a principal. Its abilities are fixed
// when the token is issued.
type AccessToken struct {
	ID          int64      `json:"id" db:"id"`
	PrincipalID string     `json:"principal_id" db:"principal_id"`
	Name        string     `json:"name" db:"name"`
	Abilities   []string   `json:"abilities" db:"-"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Can reports whether ability is one of the token's abilities.
func (t *AccessToken) Can(ability string) bool {
	if t == nil {
		return false
	}
	for _, a := range t.Abilities {
		if a == ability {
			return true
		}
	}
	return false
}

// Expired reports whether the token is past its expiry at now.
func (t *AccessToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

type (
	// SEO is the search metadata shared by collections and collection types.
	SEO struct {
		MetaTitle       *string `json:"meta_title" db:"meta_title"`
		MetaDescription *string `json:"meta_description" db:"meta_description"`
	}

	CollectionType struct {
		ID          int64   `json:"id" db:"id"`
		Slug        string  `json:"slug" db:"slug"`
		Name        string  `json:"name" db:"name"`
		Description *string `json:"description" db:"description"`
		Image       *string `json:"image" db:"image"`
		SEO
	}

	Collection struct {
		ID               int64   `json:"id" db:"id"`
		Slug             string  `json:"slug" db:"slug"`
		Name             string  `json:"name" db:"name"`
		Description      *string `json:"description" db:"description"`
		Banner           *string `json:"banner" db:"banner"`
		Thumbnail        *string `json:"thumbnail" db:"thumbnail"`
		Featured         bool    `json:"featured" db:"featured"`
		CollectionTypeID int64   `json:"collection_type_id" db:"collection_type_id"`
		SEO

		CollectionType *CollectionType `json:"collection_type,omitempty" db:"-"`
		Products       []Product       `json:"products,omitempty" db:"-"`
	}

	Product struct {
		ID     int64           `json:"id" db:"id"`
		Slug   string          `json:"slug" db:"slug"`
		Name   string          `json:"name" db:"name"`
		Price  decimal.Decimal `json:"price" db:"price"`
		Status string          `json:"status" db:"status"`
		Images []ProductImage  `json:"images" db:"-"`
	}

	ProductImage struct {
		ID        int64  `json:"id" db:"id"`
		ProductID int64  `json:"product_id" db:"product_id"`
		Path      string `json:"path" db:"path"`
		Position  int    `json:"position" db:"position"`
	}
)

const (
	ProductStatusActive = "active"
	ProductStatusDraft  = "draft"
)
