package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-seat-reservation/internal/utils"
)

// AuthHandler issues operator access tokens.  There is a single operator
// account whose bcrypt password hash comes from configuration.
type AuthHandler struct {
	Secret       string
	PasswordHash string
	TTL          time.Duration
}

func NewAuthHandler(secret, passwordHash string, ttl time.Duration) *AuthHandler {
	return &AuthHandler{Secret: secret, PasswordHash: passwordHash, TTL: ttl}
}

type loginReq struct {
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type loginResp struct {
	Role   string    `json:"role"`
	Access tokenPart `json:"access"`
}

// Login checks the operator password and returns an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password is required"})
	}
	if !utils.VerifyPassword(h.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	at, err := utils.NewAccessToken(h.Secret, "operator", utils.RoleOperator, h.TTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue token"})
	}
	return c.JSON(http.StatusOK, loginResp{
		Role:   utils.RoleOperator,
		Access: tokenPart{Token: at.Token, Expires: at.Exp},
	})
}
