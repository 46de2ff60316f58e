package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	AppEnv  string `env:"APP_ENV" envDefault:"dev"`
	GitSHA  string `env:"GIT_SHA"`
	BuildAt string `env:"BUILD_TIME"`

	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306), unix(/cloudsql/instance) or a bare host
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	JWTSecret  string        `env:"JWT_SECRET,required"`
	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"24h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`

	// none, gcs or s3
	ImageStore      string `env:"IMAGE_STORE" envDefault:"none"`
	GCSBucket       string `env:"GCS_BUCKET"`
	GCSCredentials  string `env:"GCS_CREDENTIALS_FILE"` // empty means application default credentials
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3AccessKey     string `env:"S3_ACCESS_KEY"`
	S3SecretKey     string `env:"S3_SECRET_KEY"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3UseSSL        bool   `env:"S3_USE_SSL" envDefault:"false"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	MaxImageBytes   int64  `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`

	RedisURL    string   `env:"REDIS_URL"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.ImageStore = strings.ToLower(strings.TrimSpace(cfg.ImageStore))
	return &cfg, nil
}
