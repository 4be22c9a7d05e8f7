// Package client is the typed HTTP client for the storefront catalog API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	app "storefront/src/app"
)

type (
	// Service issues independent reads against the catalog API. It holds no
	// state between calls.
	Service struct {
		baseURL    string
		httpClient *http.Client
	}

	// StatusError is returned when the API answers with a non-2xx status.
	StatusError struct {
		StatusCode int
		Message    string
	}

	messageBody struct {
		Message string `json:"message"`
	}
)

// ErrEmptySlug is returned by Collection before any request is made.
var ErrEmptySlug = errors.New("storefront api: collection slug is empty")

const (
	collectionTypesPath     = "/api/collection-types"
	collectionsPath         = "/api/collections"
	featuredCollectionsPath = "/api/collections/featured"
	searchCollectionsPath   = "/api/collections/search"
)

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storefront api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("storefront api: status %d: %s", e.StatusCode, e.Message)
}

// New returns a Service for baseURL. A nil httpClient uses one with timeout.
func New(baseURL string, httpClient *http.Client, timeout time.Duration) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Service{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (s *Service) CollectionTypes(ctx context.Context) ([]app.CollectionType, error) {
	var result []app.CollectionType
	err := s.get(ctx, collectionTypesPath, nil, &result)
	return result, err
}

// Collections lists collections, filtered by collection type when typ is set.
func (s *Service) Collections(ctx context.Context, typ string) ([]app.Collection, error) {
	var query url.Values
	if typ != "" {
		query = url.Values{"type": {typ}}
	}
	var result []app.Collection
	err := s.get(ctx, collectionsPath, query, &result)
	return result, err
}

func (s *Service) FeaturedCollections(ctx context.Context) ([]app.Collection, error) {
	var result []app.Collection
	err := s.get(ctx, featuredCollectionsPath, nil, &result)
	return result, err
}

func (s *Service) SearchCollections(ctx context.Context, q string) ([]app.Collection, error) {
	var result []app.Collection
	err := s.get(ctx, searchCollectionsPath, url.Values{"q": {q}}, &result)
	return result, err
}

// Collection fetches one collection with its type and products.
func (s *Service) Collection(ctx context.Context, slug string) (app.Collection, error) {
	var result app.Collection
	if slug == "" {
		return result, ErrEmptySlug
	}
	err := s.get(ctx, collectionsPath+"/"+url.PathEscape(slug), nil, &result)
	return result, err
}

func (s *Service) get(ctx context.Context, path string, query url.Values, target any) error {
	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body messageBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &body) != nil {
			body.Message = strings.TrimSpace(string(raw))
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: body.Message}
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
