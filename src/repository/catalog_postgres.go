package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	app "storefront/src/app"

	"github.com/jmoiron/sqlx"
)

// PostgresCatalog reads the catalog tables.
type PostgresCatalog struct {
	db *sqlx.DB
}

var _ CatalogStore = (*PostgresCatalog)(nil)

func NewPostgresCatalog(db *sqlx.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

const (
	collectionTypeColumns = `id, slug, name, description, image, meta_title, meta_description`
	collectionColumns     = `c.id, c.slug, c.name, c.description, c.banner, c.thumbnail, c.featured,
		c.collection_type_id, c.meta_title, c.meta_description`
)

func (s *PostgresCatalog) CollectionTypes(ctx context.Context) ([]app.CollectionType, error) {
	types := []app.CollectionType{}
	err := s.db.SelectContext(ctx, &types, `SELECT `+collectionTypeColumns+` FROM collection_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collection types: %w", err)
	}
	return types, nil
}

func (s *PostgresCatalog) Collections(ctx context.Context, typ string) ([]app.Collection, error) {
	collections := []app.Collection{}
	var err error
	switch id, convErr := strconv.ParseInt(typ, 10, 64); {
	case typ == "":
		err = s.db.SelectContext(ctx, &collections, `SELECT `+collectionColumns+` FROM collections c ORDER BY c.name`)
	case convErr == nil:
		err = s.db.SelectContext(ctx, &collections, `SELECT `+collectionColumns+` FROM collections c
			WHERE c.collection_type_id = $1 ORDER BY c.name`, id)
	default:
		err = s.db.SelectContext(ctx, &collections, `SELECT `+collectionColumns+` FROM collections c
			JOIN collection_types t ON t.id = c.collection_type_id
			WHERE t.slug = $1 ORDER BY c.name`, typ)
	}
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return collections, nil
}

func (s *PostgresCatalog) FeaturedCollections(ctx context.Context) ([]app.Collection, error) {
	collections := []app.Collection{}
	err := s.db.SelectContext(ctx, &collections, `SELECT `+collectionColumns+` FROM collections c
		WHERE c.featured ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("list featured collections: %w", err)
	}
	return collections, nil
}

func (s *PostgresCatalog) SearchCollections(ctx context.Context, query string) ([]app.Collection, error) {
	collections := []app.Collection{}
	err := s.db.SelectContext(ctx, &collections, `SELECT `+collectionColumns+` FROM collections c
		WHERE c.name ILIKE $1 OR c.description ILIKE $1 ORDER BY c.name`, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("search collections: %w", err)
	}
	return collections, nil
}

func (s *PostgresCatalog) CollectionBySlug(ctx context.Context, slug string) (app.Collection, error) {
	var c app.Collection
	err := s.db.GetContext(ctx, &c, `SELECT `+collectionColumns+` FROM collections c WHERE c.slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return app.Collection{}, fmt.Errorf("collection %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return app.Collection{}, fmt.Errorf("get collection %q: %w", slug, err)
	}

	var ct app.CollectionType
	err = s.db.GetContext(ctx, &ct, `SELECT `+collectionTypeColumns+` FROM collection_types WHERE id = $1`, c.CollectionTypeID)
	switch {
	case err == nil:
		c.CollectionType = &ct
	case !errors.Is(err, sql.ErrNoRows):
		return app.Collection{}, fmt.Errorf("get collection type %d: %w", c.CollectionTypeID, err)
	}

	products, err := s.products(ctx, c.ID)
	if err != nil {
		return app.Collection{}, err
	}
	c.Products = products
	return c, nil
}

func (s *PostgresCatalog) products(ctx context.Context, collectionID int64) ([]app.Product, error) {
	products := []app.Product{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT p.id, p.slug, p.name, p.price, p.status
		FROM products p
		JOIN collection_product cp ON cp.product_id = p.id
		WHERE cp.collection_id = $1 AND p.status = $2
		ORDER BY cp.position, p.id
	`, collectionID, app.ProductStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list products of collection %d: %w", collectionID, err)
	}
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]int64, len(products))
	byID := make(map[int64]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		byID[p.ID] = i
		products[i].Images = []app.ProductImage{}
	}
	query, args, err := sqlx.In(`SELECT id, product_id, path, position FROM product_images
		WHERE product_id IN (?) ORDER BY product_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("build product images query: %w", err)
	}
	images := []app.ProductImage{}
	if err := s.db.SelectContext(ctx, &images, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list product images: %w", err)
	}
	for _, img := range images {
		if i, ok := byID[img.ProductID]; ok {
			products[i].Images = append(products[i].Images, img)
		}
	}
	return products, nil
}
