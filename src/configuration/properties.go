package configuration

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type (
	Properties struct {
		LogLevel string `env:"LOG_LEVEL" envDefault:"DEBUG"`

		Auth       AuthProperties       `envPrefix:"AUTH_"`
		S3         S3Properties         `envPrefix:"S3_"`
		Server     HttpServerProperties `envPrefix:"HTTP_"`
		Database   DatabaseProperties   `envPrefix:"DB_"`
		Redis      RedisProperties      `envPrefix:"REDIS_"`
		Storefront StorefrontProperties `envPrefix:"STOREFRONT_"`
	}

	AuthProperties struct {
		Host                   string        `env:"HOST" envDefault:"https://gitlab.my.com"`
		ID                     string        `env:"ID"`
		Secret                 string        `env:"SECRET"`
		Redirect               string        `env:"REDIRECT_URL" envDefault:"http://localhost:8088/callback"`
		AccessTokenCookieName  string        `env:"ACCESS_COOKIE" envDefault:"sf_access_token"`
		RefreshTokenCookieName string        `env:"REFRESH_COOKIE" envDefault:"sf_refresh_token"`
		IDTokenCookieName      string        `env:"ID_COOKIE" envDefault:"sf_id_token"`
		DefaultAbilities       []string      `env:"DEFAULT_ABILITIES" envSeparator:"," envDefault:"tokens:create,tokens:revoke"`
		TokenTTL               time.Duration `env:"TOKEN_TTL" envDefault:"720h"`
		ReadTimeout            time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	}

	HttpServerProperties struct {
		Name         string        `env:"NAME" envDefault:"storefront"`
		Port         string        `env:"PORT" envDefault:"8088"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
		AllowOrigins []string      `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
		Pprof        bool          `env:"PPROF" envDefault:"false"`
	}

	S3Properties struct {
		Host          string        `env:"HOST" envDefault:"s3.minio.com"`
		AccessKey     string        `env:"ACCESS_KEY"`
		SecretKey     string        `env:"SECRET_KEY"`
		Bucket        string        `env:"BUCKET" envDefault:"storefront"`
		UseSSL        bool          `env:"USE_SSL" envDefault:"true"`
		PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
		ReadTimeout   time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	}

	// DatabaseProperties selects the persistence backend. An empty DSN keeps
	// everything in memory.
	DatabaseProperties struct {
		DSN          string `env:"DSN"`
		MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		SeedFile     string `env:"SEED_FILE"`
	}

	RedisProperties struct {
		Addr      string        `env:"ADDR"`
		Password  string        `env:"PASSWORD"`
		DB        int           `env:"DB" envDefault:"0"`
		RateLimit int64         `env:"RATE_LIMIT" envDefault:"5"`
		Window    time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	}

	StorefrontProperties struct {
		BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8088"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	}
)

// Parse reads the properties from the process environment.
func Parse() (*Properties, error) {
	config := &Properties{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	return config, nil
}

func ReadProperties() *Properties {
	config, err := Parse()
	if err != nil {
		panic(err)
	}
	return config
}
