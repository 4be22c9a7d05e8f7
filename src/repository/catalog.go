package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	app "storefront/src/app"
)

// CatalogStore is the read side of the catalog.
type CatalogStore interface {
	CollectionTypes(ctx context.Context) ([]app.CollectionType, error)
	// Collections lists collections, filtered by collection type slug or id
	// when typ is not empty.
	Collections(ctx context.Context, typ string) ([]app.Collection, error)
	FeaturedCollections(ctx context.Context) ([]app.Collection, error)
	SearchCollections(ctx context.Context, query string) ([]app.Collection, error)
	// CollectionBySlug returns the collection with its type and active products.
	CollectionBySlug(ctx context.Context, slug string) (app.Collection, error)
}

// Catalog is the document shape of a seed file.
type Catalog struct {
	CollectionTypes []app.CollectionType `json:"collection_types"`
	Collections     []app.Collection     `json:"collections"`
	// Products maps a collection slug to its products.
	Products map[string][]app.Product `json:"products"`
}

// MemoryCatalog serves a fixed catalog. It is used when no database is
// configured and in tests.
type MemoryCatalog struct {
	mu      sync.RWMutex
	catalog Catalog
}

var _ CatalogStore = (*MemoryCatalog)(nil)

func NewMemoryCatalog(catalog Catalog) *MemoryCatalog {
	sort.Slice(catalog.CollectionTypes, func(i, j int) bool {
		return catalog.CollectionTypes[i].Name < catalog.CollectionTypes[j].Name
	})
	sort.Slice(catalog.Collections, func(i, j int) bool {
		return catalog.Collections[i].Name < catalog.Collections[j].Name
	})
	return &MemoryCatalog{catalog: catalog}
}

// LoadCatalogFile reads a JSON seed file.
func LoadCatalogFile(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	var catalog Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return catalog, nil
}

func (m *MemoryCatalog) CollectionTypes(_ context.Context) ([]app.CollectionType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]app.CollectionType{}, m.catalog.CollectionTypes...), nil
}

func (m *MemoryCatalog) Collections(_ context.Context, typ string) ([]app.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if typ == "" {
		return m.filter(func(app.Collection) bool { return true }), nil
	}
	ct, ok := m.findType(typ)
	if !ok {
		return []app.Collection{}, nil
	}
	return m.filter(func(c app.Collection) bool { return c.CollectionTypeID == ct.ID }), nil
}

func (m *MemoryCatalog) FeaturedCollections(_ context.Context) ([]app.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter(func(c app.Collection) bool { return c.Featured }), nil
}

func (m *MemoryCatalog) SearchCollections(_ context.Context, query string) ([]app.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	query = strings.ToLower(strings.TrimSpace(query))
	return m.filter(func(c app.Collection) bool {
		if strings.Contains(strings.ToLower(c.Name), query) {
			return true
		}
		return c.Description != nil && strings.Contains(strings.ToLower(*c.Description), query)
	}), nil
}

func (m *MemoryCatalog) CollectionBySlug(_ context.Context, slug string) (app.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.catalog.Collections {
		if c.Slug != slug {
			continue
		}
		if ct, ok := m.findType(strconv.FormatInt(c.CollectionTypeID, 10)); ok {
			c.CollectionType = &ct
		}
		c.Products = []app.Product{}
		for _, p := range m.catalog.Products[slug] {
			if p.Status == app.ProductStatusActive {
				c.Products = append(c.Products, p)
			}
		}
		return c, nil
	}
	return app.Collection{}, fmt.Errorf("collection %q: %w", slug, ErrNotFound)
}

func (m *MemoryCatalog) filter(keep func(app.Collection) bool) []app.Collection {
	result := []app.Collection{}
	for _, c := range m.catalog.Collections {
		if keep(c) {
			result = append(result, c)
		}
	}
	return result
}

func (m *MemoryCatalog) findType(typ string) (app.CollectionType, bool) {
	id, idErr := strconv.ParseInt(typ, 10, 64)
	for _, ct := range m.catalog.CollectionTypes {
		if ct.Slug == typ || (idErr == nil && ct.ID == id) {
			return ct, true
		}
	}
	return app.CollectionType{}, false
}
