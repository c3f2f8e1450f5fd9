package handlers

import (
	"errors"
	"net/http"

	"schedge-backend/internal/common"
	"schedge-backend/internal/config"
	"schedge-backend/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/lindell/go-burner-email-providers/burner"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// UserHandler owns the account endpoints: signup and login, both of which
// answer with a signed bearer token.
type UserHandler struct {
	common.ServerState
}

type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func NewUserHandler(db *gorm.DB, cfg *config.Config, jwt common.JWTIssuer, redis *redis.Client) *UserHandler {
	return &UserHandler{
		ServerState: common.ServerState{
			DB:        db,
			Config:    cfg,
			JwtIssuer: jwt,
			Redis:     redis,
		},
	}
}

func (h *UserHandler) SignUp(c echo.Context) error {
	c.Logger().Info("Received sign-up request")

	req := new(CredentialsRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if burner.IsBurnerEmail(req.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, "Temporary email addresses are not allowed")
	}

	u := &models.User{
		Email:    req.Email,
		Password: req.Password,
	}

	result := h.DB.Create(u)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return echo.NewHTTPError(http.StatusBadRequest, "Email already in use")
	}
	if result.Error != nil {
		c.Logger().Errorf("Failed to create user: %v", result.Error)
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to create user")
	}

	token, err := h.JwtIssuer.GenerateToken(u.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{"email": u.Email, "token": token})
}

func (h *UserHandler) Login(c echo.Context) error {
	c.Logger().Info("Received login request")

	req := new(CredentialsRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u := &models.User{}
	result := h.DB.Where("email = ?", req.Email).First(u)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusBadRequest, "Incorrect email")
	}
	if result.Error != nil {
		c.Logger().Errorf("Failed to load user: %v", result.Error)
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to log in")
	}

	if !u.CheckPassword(req.Password) {
		return echo.NewHTTPError(http.StatusBadRequest, "Incorrect password")
	}

	token, err := h.JwtIssuer.GenerateToken(u.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{"email": u.Email, "token": token})
}
