package server

import (
	"errors"
	"net/http"
	"strings"

	db "storefront/src/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CatalogHandler struct {
	store  db.CatalogStore
	logger logrus.FieldLogger
}

func NewCatalogHandler(store db.CatalogStore, logger logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{store: store, logger: logger}
}

func (h *CatalogHandler) GetCollectionTypes(c *gin.Context) {
	types, err := h.store.CollectionTypes(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

func (h *CatalogHandler) GetCollections(c *gin.Context) {
	collections, err := h.store.Collections(c.Request.Context(), c.Query("type"))
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, collections)
}

func (h *CatalogHandler) GetFeaturedCollections(c *gin.Context) {
	collections, err := h.store.FeaturedCollections(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, collections)
}

func (h *CatalogHandler) SearchCollections(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		abortWithMessage(c, http.StatusUnprocessableEntity, "The q field is required.")
		return
	}
	collections, err := h.store.SearchCollections(c.Request.Context(), q)
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, collections)
}

func (h *CatalogHandler) GetCollection(c *gin.Context) {
	collection, err := h.store.CollectionBySlug(c.Request.Context(), c.Param("slug"))
	if errors.Is(err, db.ErrNotFound) {
		abortWithMessage(c, http.StatusNotFound, "Not Found")
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, collection)
}

func (h *CatalogHandler) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	h.logger.WithError(err).WithField("path", c.FullPath()).Error("catalog query failed")
	abortWithMessage(c, http.StatusInternalServerError, "Server Error")
}
