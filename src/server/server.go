package server

import (
	"fmt"
	"net/http"
	"time"

	app "storefront/src/app"
	cfg "storefront/src/configuration"
	db "storefront/src/repository"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Abilities checked by the gate on protected routes.
const (
	AbilityTokensCreate = "tokens:create"
	AbilityTokensRevoke = "tokens:revoke"
	AbilityImagesRead   = "images:read"
	AbilityImagesWrite  = "images:write"
	AbilityImagesDelete = "images:delete"
)

type Dependencies struct {
	Config  *cfg.Properties
	Logger  *logrus.Logger
	Tokens  db.TokenStore
	Catalog db.CatalogStore
	Storage app.ObjectStore
	Redis   *redis.Client
	Auth    *AuthHandler
}

func NewRouter(deps Dependencies) *gin.Engine {
	config := deps.Config
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(deps.Logger), Metrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     config.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Accept-Encoding", "Authorization", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(Authenticate(deps.Tokens, config.Auth.AccessTokenCookieName, deps.Logger))

	catalog := NewCatalogHandler(deps.Catalog, deps.Logger)
	s3 := NewS3Handler(deps.Storage, config.S3.ReadTimeout, deps.Logger)
	auth := deps.Auth
	limit := RateLimiter(deps.Redis, config.Redis.RateLimit, config.Redis.Window, deps.Logger)

	router.GET("/health", auth.GetHealth)
	router.GET("/metrics", metricsHandler())
	router.GET("/login", limit, auth.Login)
	router.GET("/signin", limit, auth.Signin)
	router.GET("/callback", limit, auth.Callback)
	router.GET("/logout", auth.Logout)
	router.GET("/storage/*path", s3.GetStorageObject)

	api := router.Group("/api")
	{
		api.GET("/collection-types", catalog.GetCollectionTypes)
		api.GET("/collections", catalog.GetCollections)
		api.GET("/collections/featured", catalog.GetFeaturedCollections)
		api.GET("/collections/search", catalog.SearchCollections)
		api.GET("/collections/:slug", catalog.GetCollection)

		api.GET("/user", RequireAuth(), auth.Account)
		api.POST("/tokens", limit, RequireAbility(AbilityTokensCreate), auth.CreateToken)
		api.DELETE("/tokens/current", RequireAbility(AbilityTokensRevoke), auth.RevokeCurrentToken)

		api.GET("/images", RequireAbility(AbilityImagesRead), s3.GetImageList)
		api.POST("/images", RequireAbility(AbilityImagesWrite), s3.PostImage)
		api.DELETE("/images", RequireAbility(AbilityImagesDelete), s3.DeleteImage)
	}

	if config.Server.Pprof {
		pprof.Register(router)
	}
	router.NoRoute(func(c *gin.Context) { abortWithMessage(c, http.StatusNotFound, "Not Found") })
	return router
}

// RunServer wires the stores from config and serves until the listener fails.
func RunServer(config *cfg.Properties) error {
	logger := cfg.NewLogger(config)
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Open(config)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
		if err := db.Migrate(config.Database.DSN); err != nil {
			return err
		}
	}

	tokens, err := db.NewAuthDataBase(config, database)
	if err != nil {
		return err
	}
	if !tokens.Connect() {
		return fmt.Errorf("can not connect to token store")
	}
	catalog, err := db.NewCatalogStore(config, database)
	if err != nil {
		return err
	}

	clientS3, err := app.NewMinioS3Client(
		config.S3.Host,
		config.S3.AccessKey,
		config.S3.SecretKey,
		config.S3.Bucket,
		config.S3.UseSSL,
		config.S3.PresignExpiry)
	if err != nil {
		return err
	}

	redisClient := NewRedisClient(config.Redis.Addr, config.Redis.Password, config.Redis.DB, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	router := NewRouter(Dependencies{
		Config:  config,
		Logger:  logger,
		Tokens:  tokens,
		Catalog: catalog,
		Storage: clientS3,
		Redis:   redisClient,
		Auth:    NewAuthHandler(config, tokens, logger),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: config.Server.ReadTimeout,
	}
	logger.WithField("addr", srv.Addr).Info("storefront listening")
	return srv.ListenAndServe()
}
