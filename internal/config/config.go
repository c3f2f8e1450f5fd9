package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Port          string
		Host          string
		DeployDomain  string
		AllowedOrigin string
		Debug         bool
	}
	Auth struct {
		SessionSecret string
	}
	Database struct {
		DSN      string
		RedisURI string
	}
	Media struct {
		CloudName string
		APIKey    string
		APISecret string
		BaseURL   string
	}
	Sentry struct {
		DSN string
	}
}

func Load() (*Config, error) {

	envStack := os.Getenv("ENV_STACK")

	if envStack != "" {
		filePath := "./env-files/.env." + envStack
		err := godotenv.Load(filePath)
		if err != nil {
			fmt.Printf("Error loading .env file: %s\n", err)
		}
	}

	c := &Config{}

	c.Server.Port = os.Getenv("SERVER_PORT")
	if c.Server.Port == "" {
		c.Server.Port = "4000"
	}

	c.Server.Host = os.Getenv("SERVER_HOST")
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}

	c.Server.DeployDomain = os.Getenv("DEPLOY_DOMAIN")
	if c.Server.DeployDomain == "" {
		c.Server.DeployDomain = c.Server.Host + ":" + c.Server.Port
	}

	// The web client is deployed separately, so CORS needs a pinned origin
	// in production. Defaults to permissive for local development.
	c.Server.AllowedOrigin = os.Getenv("ALLOWED_ORIGIN")

	c.Server.Debug = os.Getenv("ENABLE_DEBUG_ENDPOINTS") == "true"

	c.Auth.SessionSecret = os.Getenv("SESSION_SECRET")

	c.Database.DSN = os.Getenv("DATABASE_DSN")
	c.Database.RedisURI = os.Getenv("REDIS_URI")

	c.Media.CloudName = os.Getenv("MEDIA_CLOUD_NAME")
	c.Media.APIKey = os.Getenv("MEDIA_API_KEY")
	c.Media.APISecret = os.Getenv("MEDIA_API_SECRET")
	c.Media.BaseURL = os.Getenv("MEDIA_BASE_URL")
	if c.Media.BaseURL == "" && c.Media.CloudName != "" {
		c.Media.BaseURL = fmt.Sprintf("https://api.cloudinary.com/v1_1/%s", c.Media.CloudName)
	}

	c.Sentry.DSN = os.Getenv("SENTRY_DSN")

	return c, nil
}
