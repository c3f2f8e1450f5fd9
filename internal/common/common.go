package common

import (
	"schedge-backend/internal/config"
	"schedge-backend/internal/media"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type JwtCustomClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type JWTIssuer interface {
	GenerateToken(email string) (string, error)
	Middleware() echo.MiddlewareFunc
	GetUserEmail(c echo.Context) (string, error)
}

type ServerState struct {
	Echo      *echo.Echo
	Config    *config.Config
	DB        *gorm.DB
	JwtIssuer JWTIssuer
	Redis     *redis.Client
	Media     media.Client
}
