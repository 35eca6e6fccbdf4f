package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/electrohogar/catalogo/config"
	"github.com/electrohogar/catalogo/pkg/auth"
	"github.com/electrohogar/catalogo/pkg/logger"
	"github.com/electrohogar/catalogo/pkg/response"
	"github.com/electrohogar/catalogo/pkg/validate"
)

type AuthController struct{}

func NewAuthController() *AuthController {
	return &AuthController{}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login checks the credentials against the configured admin account and
// returns a signed JWT. When no admin password hash is configured the
// endpoint is disabled.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if errs := validate.Struct(body); len(errs) > 0 {
		response.ValidationError(w, errs)
		return
	}

	hash := config.AdminPasswordHash()
	if hash == "" {
		logger.WithCtx(r.Context()).Warn("login attempted but no admin account configured")
		response.Unauthorized(w)
		return
	}

	if body.Email != config.AdminEmail() || !auth.CheckPassword(hash, body.Password) {
		response.Unauthorized(w)
		return
	}

	token, err := auth.GenerateToken(body.Email)
	if err != nil {
		logger.WithCtx(r.Context()).Error("generate token", "error", err)
		response.Error(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	response.Success(w, map[string]string{"token": token})
}
