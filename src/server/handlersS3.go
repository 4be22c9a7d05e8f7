package server

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	app "storefront/src/app"
	"storefront/src/client"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type (
	S3Handler struct {
		s3      app.ObjectStore
		logger  logrus.FieldLogger
		maxSize int64
		timeout time.Duration
	}

	DeleteImageBody struct {
		Path string `json:"path" binding:"required"`
	}

	ImageResponse struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
)

const maxImageSize = 10 << 20

// NewS3Handler bounds presign and list calls by readTimeout when it is set.
func NewS3Handler(s3Client app.ObjectStore, readTimeout time.Duration, logger logrus.FieldLogger) *S3Handler {
	return &S3Handler{
		s3:      s3Client,
		logger:  logger,
		maxSize: maxImageSize,
		timeout: readTimeout,
	}
}

func (a *S3Handler) readContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), a.timeout)
}

// GetStorageObject redirects /storage/{path} to a presigned object url.
func (a *S3Handler) GetStorageObject(c *gin.Context) {
	key, err := app.CleanKey(c.Param("path"))
	if err != nil {
		abortWithMessage(c, http.StatusNotFound, "Not Found")
		return
	}
	ctx, cancel := a.readContext(c)
	defer cancel()
	u, err := a.s3.ObjectURL(ctx, key)
	if err != nil {
		a.logger.WithError(err).WithField("key", key).Error("can not presign object")
		abortWithMessage(c, http.StatusBadGateway, "Storage unavailable")
		return
	}
	c.Redirect(http.StatusFound, u.String())
}

func (a *S3Handler) GetImageList(c *gin.Context) {
	ctx, cancel := a.readContext(c)
	defer cancel()
	images, err := a.s3.ListImages(ctx, c.Query("prefix"))
	if err != nil {
		a.logger.WithError(err).Error("can not fetch images from s3")
		abortWithMessage(c, http.StatusBadGateway, "Storage unavailable")
		return
	}
	result := make([]ImageResponse, 0, len(images))
	for _, key := range images {
		result = append(result, ImageResponse{Path: key, URL: client.ImageURL(key)})
	}
	c.JSON(http.StatusOK, result)
}

func (a *S3Handler) PostImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		abortWithMessage(c, http.StatusUnprocessableEntity, "The image field is required.")
		return
	}
	defer file.Close()

	if header.Size > a.maxSize {
		abortWithMessage(c, http.StatusRequestEntityTooLarge, "The image is too large.")
		return
	}
	dir := strings.Trim(c.PostForm("directory"), "/")
	name := c.PostForm("name")
	if name == "" {
		name = header.Filename
	}
	key, err := app.CleanKey(path.Join(dir, path.Base(name)))
	if err != nil || !isImage(key) {
		abortWithMessage(c, http.StatusUnprocessableEntity, "The image must be a file of type: "+strings.Join(app.ImageFormats, ", ")+".")
		return
	}

	if err := a.s3.UploadFile(c.Request.Context(), key, file, header.Size, header.Header.Get("Content-Type")); err != nil {
		a.logger.WithError(err).WithField("key", key).Error("can not upload image to s3")
		abortWithMessage(c, http.StatusBadGateway, "Storage unavailable")
		return
	}
	c.JSON(http.StatusCreated, ImageResponse{Path: key, URL: client.ImageURL(key)})
}

func (a *S3Handler) DeleteImage(c *gin.Context) {
	var requestBody DeleteImageBody
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		abortWithMessage(c, http.StatusUnprocessableEntity, "The path field is required.")
		return
	}
	key, err := app.CleanKey(requestBody.Path)
	if err != nil {
		abortWithMessage(c, http.StatusUnprocessableEntity, "The path is invalid.")
		return
	}
	if err := a.s3.DeleteFile(c.Request.Context(), key); err != nil {
		a.logger.WithError(err).WithField("key", key).Error("can not delete image from s3")
		abortWithMessage(c, http.StatusBadGateway, fmt.Sprintf("Can not delete %s", key))
		return
	}
	c.Status(http.StatusNoContent)
}

func isImage(key string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
	for _, f := range app.ImageFormats {
		if f == ext {
			return true
		}
	}
	return false
}
