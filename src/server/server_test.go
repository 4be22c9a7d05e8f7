package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	app "storefront/src/app"
	cfg "storefront/src/configuration"
	db "storefront/src/repository"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) ObjectURL(ctx context.Context, key string) (*url.URL, error) {
	args := m.Called(key)
	u, _ := args.Get(0).(*url.URL)
	return u, args.Error(1)
}

func (m *mockStorage) ListImages(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(prefix)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func (m *mockStorage) UploadFile(ctx context.Context, key string, object io.Reader, size int64, contentType string) error {
	return m.Called(key, size, contentType).Error(0)
}

func (m *mockStorage) DeleteFile(ctx context.Context, key string) error {
	return m.Called(key).Error(0)
}

type failingCatalog struct{ db.CatalogStore }

func (failingCatalog) FeaturedCollections(context.Context) ([]app.Collection, error) {
	return nil, errors.New("connection reset")
}

func strPtr(s string) *string { return &s }

func testConfig() *cfg.Properties {
	return &cfg.Properties{
		Auth: cfg.AuthProperties{
			AccessTokenCookieName:  "sf_access_token",
			RefreshTokenCookieName: "sf_refresh_token",
			IDTokenCookieName:      "sf_id_token",
			DefaultAbilities:       []string{AbilityTokensCreate},
			TokenTTL:               time.Hour,
		},
		Server: cfg.HttpServerProperties{AllowOrigins: []string{"http://localhost:3000"}},
	}
}

type fixture struct {
	router  *gin.Engine
	tokens  *db.InMemoryDB
	storage *mockStorage
}

func newFixture(t *testing.T, catalog db.CatalogStore) *fixture {
	t.Helper()
	config := testConfig()
	logger := testLogger()
	tokens := newTokenStore(t)
	storage := new(mockStorage)
	if catalog == nil {
		catalog = db.NewMemoryCatalog(db.Catalog{
			CollectionTypes: []app.CollectionType{{ID: 1, Slug: "shoes", Name: "Shoes"}},
			Collections: []app.Collection{
				{ID: 10, Slug: "sneakers", Name: "Sneakers", CollectionTypeID: 1, Featured: true},
				{ID: 11, Slug: "red-boots", Name: "Red boots", CollectionTypeID: 1, Banner: strPtr("banners/boots.png")},
			},
			Products: map[string][]app.Product{
				"red-boots": {{ID: 1, Slug: "boot", Name: "Boot", Price: decimal.RequireFromString("120.50"), Status: app.ProductStatusActive}},
			},
		})
	}
	auth := &AuthHandler{
		tokens:                 tokens,
		logger:                 logger,
		AccessTokenCookieName:  config.Auth.AccessTokenCookieName,
		RefreshTokenCookieName: config.Auth.RefreshTokenCookieName,
		IDTokenCookieName:      config.Auth.IDTokenCookieName,
		defaultAbilities:       config.Auth.DefaultAbilities,
		tokenTTL:               config.Auth.TokenTTL,
	}
	router := NewRouter(Dependencies{
		Config:  config,
		Logger:  logger,
		Tokens:  tokens,
		Catalog: catalog,
		Storage: storage,
		Auth:    auth,
	})
	return &fixture{router: router, tokens: tokens, storage: storage}
}

func (f *fixture) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("collection types", func(t *testing.T) {
		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/collection-types", nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"slug":"shoes"`)
	})

	t.Run("collections filtered by type", func(t *testing.T) {
		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/collections?type=shoes", nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		var collections []app.Collection
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &collections))
		assert.Len(t, collections, 2)

		w = f.do(t, httptest.NewRequest(http.MethodGet, "/api/collections?type=bags", nil), "")
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("featured", func(t *testing.T) {
		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/collections/featured", nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		var collections []app.Collection
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &collections))
		require.Len(t, collections, 1)
		assert.Equal(t, "sneakers", collections[0].Slug)
	})

	t.Run("search", func(t *testing.T) {
		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/collections/search?q=red", nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "red-boots")
		assert.NotContains(t, w.Body.String(), "sneakers")

		w = f.do(t, httptest.NewRequest(http.MethodGet, "/api/collections/search", nil), "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("by slug", func(t *testing.T) {
		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/collections/red-boots", nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		var c app.Collection
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
		require.NotNil(t, c.CollectionType)
		assert.Equal(t, "shoes", c.CollectionType.Slug)
		require.Len(t, c.Products, 1)
		assert.Contains(t, w.Body.String(), `"price":"120.5"`)

		w = f.do(t, httptest.NewRequest(http.MethodGet, "/api/collections/missing", nil), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"message":"Not Found"}`, w.Body.String())
	})

	t.Run("unknown route", func(t *testing.T) {
		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/nope", nil), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCatalogStoreFailure(t *testing.T) {
	f := newFixture(t, failingCatalog{CatalogStore: db.NewMemoryCatalog(db.Catalog{})})

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/collections/featured", nil), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Server Error"}`, w.Body.String())
}

func TestStorageRedirect(t *testing.T) {
	f := newFixture(t, nil)
	signed, _ := url.Parse("https://minio.example.com/storefront/banners/boots.png?X-Amz-Signature=abc")
	f.storage.On("ObjectURL", "banners/boots.png").Return(signed, nil)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/storage/banners/boots.png", nil), "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, signed.String(), w.Header().Get("Location"))
}

func TestImageRoutesAreGated(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, httptest.NewRequest(http.MethodDelete, "/api/images", strings.NewReader(`{"path":"a.png"}`)), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	readOnly := issue(t, f.tokens, AbilityImagesRead)
	w = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/images", strings.NewReader(`{"path":"a.png"}`)), readOnly)
	assert.Equal(t, http.StatusForbidden, w.Code)
	f.storage.AssertNotCalled(t, "DeleteFile", mock.Anything)

	deleter := issue(t, f.tokens, AbilityImagesDelete)
	f.storage.On("DeleteFile", "a.png").Return(nil)
	w = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/images", strings.NewReader(`{"path":"a.png"}`)), deleter)
	assert.Equal(t, http.StatusNoContent, w.Code)
	f.storage.AssertExpectations(t)
}

func TestImageList(t *testing.T) {
	f := newFixture(t, nil)
	f.storage.On("ListImages", "products").Return([]string{"products/a.png"}, nil)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/images?prefix=products", nil), issue(t, f.tokens, AbilityImagesRead))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"path":"products/a.png","url":"/storage/products/a.png"}]`, w.Body.String())
}

func multipartImage(t *testing.T, filename, directory string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake png"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("directory", directory))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestPostImage(t *testing.T) {
	f := newFixture(t, nil)
	writer := issue(t, f.tokens, AbilityImagesWrite)

	body, contentType := multipartImage(t, "boot.png", "/products/")
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", contentType)
	f.storage.On("UploadFile", "products/boot.png", int64(8), "image/png").Return(nil)

	w := f.do(t, req, writer)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"path":"products/boot.png","url":"/storage/products/boot.png"}`, w.Body.String())

	body, contentType = multipartImage(t, "notes.txt", "")
	req = httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", contentType)
	w = f.do(t, req, writer)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTokenRoutes(t *testing.T) {
	f := newFixture(t, nil)
	caller := issue(t, f.tokens, AbilityTokensCreate, AbilityTokensRevoke, AbilityImagesRead)

	t.Run("account", func(t *testing.T) {
		w := f.do(t, httptest.NewRequest(http.MethodGet, "/api/user", nil), caller)
		require.Equal(t, http.StatusOK, w.Code)
		var account AccountResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
		assert.Equal(t, "Ada", account.Principal.Name)
		assert.ElementsMatch(t, []string{AbilityTokensCreate, AbilityTokensRevoke, AbilityImagesRead}, account.Token.Abilities)
	})

	t.Run("create subset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/tokens", strings.NewReader(`{"name":"cli","abilities":["images:read"]}`))
		w := f.do(t, req, caller)
		require.Equal(t, http.StatusCreated, w.Code)

		var created struct {
			Plain string          `json:"plain_text_token"`
			Token app.AccessToken `json:"access_token"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, []string{"images:read"}, created.Token.Abilities)

		_, token, err := f.tokens.FindToken(context.Background(), created.Plain)
		require.NoError(t, err)
		assert.False(t, token.Can(AbilityTokensCreate))
	})

	t.Run("create escalation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/tokens", strings.NewReader(`{"name":"cli","abilities":["images:delete"]}`))
		w := f.do(t, req, caller)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("create invalid ttl", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/tokens", strings.NewReader(`{"name":"cli","expires_in":"forever"}`))
		w := f.do(t, req, caller)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("revoke current", func(t *testing.T) {
		w := f.do(t, httptest.NewRequest(http.MethodDelete, "/api/tokens/current", nil), caller)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = f.do(t, httptest.NewRequest(http.MethodGet, "/api/user", nil), caller)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLoginWithoutProvider(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t, nil)
	token := issue(t, f.tokens)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "sf_access_token", Value: token})
	w := f.do(t, req, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Values("Set-Cookie"))

	_, _, err := f.tokens.FindToken(context.Background(), token)
	assert.ErrorIs(t, err, db.ErrTokenNotFound)
}

func TestIsLocalPath(t *testing.T) {
	assert.True(t, isLocalPath("/"))
	assert.True(t, isLocalPath("/account"))
	assert.False(t, isLocalPath("//evil.example.com"))
	assert.False(t, isLocalPath("https://evil.example.com"))
	assert.False(t, isLocalPath(""))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, httptest.NewRequest(http.MethodGet, "/api/collection-types", nil), "")

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storefront_http_requests_total")
}

func TestGateDenialsCounted(t *testing.T) {
	f := newFixture(t, nil)
	caller := issue(t, f.tokens, AbilityTokensCreate)
	forbidden := gateDenials.WithLabelValues("403")
	unauthenticated := gateDenials.WithLabelValues("401")

	before := testutil.ToFloat64(forbidden)
	req := httptest.NewRequest(http.MethodPost, "/api/tokens", strings.NewReader(`{"name":"cli","abilities":["images:delete"]}`))
	require.Equal(t, http.StatusForbidden, f.do(t, req, caller).Code)
	assert.Equal(t, before, testutil.ToFloat64(forbidden))

	require.Equal(t, http.StatusForbidden, f.do(t, httptest.NewRequest(http.MethodGet, "/api/images", nil), caller).Code)
	assert.Equal(t, before+1, testutil.ToFloat64(forbidden))

	before = testutil.ToFloat64(unauthenticated)
	require.Equal(t, http.StatusUnauthorized, f.do(t, httptest.NewRequest(http.MethodGet, "/api/user", nil), "").Code)
	assert.Equal(t, before+1, testutil.ToFloat64(unauthenticated))
}
