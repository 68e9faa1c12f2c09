package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/loomctl/loom/internal/authn"
	"github.com/loomctl/loom/internal/config"
	"github.com/loomctl/loom/internal/httputil"
	"github.com/loomctl/loom/internal/usermgmt"
)

// AuthHandler serves authentication endpoints. There is no self-service
// registration — accounts are created either by the first-run admin
// bootstrap or by accepting an invitation (spec.md §3's "created by
// invitation flow").
type AuthHandler struct {
	Users usermgmt.Store
	Cfg   *config.Config
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type acceptInvitationRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body loginRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeInvalidBody, "invalid request body")
	}

	user, err := h.Users.GetUserByEmail(c.Context(), body.Email)
	if err != nil {
		if errors.Is(err, usermgmt.ErrNotFound) {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeInvalidCredentials, "invalid email or password")
		}
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "an internal error occurred")
	}

	ok, err := authn.VerifyPassword(body.Password, user.PasswordHash)
	if err != nil || !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeInvalidCredentials, "invalid email or password")
	}

	token, err := authn.NewAccessToken(user.ID.String(), user.Username, user.IsAdmin, "", h.Cfg.JWTSecret, h.Cfg.JWTAccessTTL, h.Cfg.JWTIssuer)
	if err != nil {
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "an internal error occurred")
	}

	return httputil.Success(c, fiber.Map{
		"user": fiber.Map{
			"id":       user.ID,
			"email":    user.Email,
			"username": user.Username,
			"is_admin": user.IsAdmin,
		},
		"access_token": token,
	})
}

// AcceptInvitation handles POST /auth/accept-invitation.
func (h *AuthHandler) AcceptInvitation(c fiber.Ctx) error {
	var body acceptInvitationRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeInvalidBody, "invalid request body")
	}
	if err := authn.ValidateUsername(body.Username); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeInvalidBody, err.Error())
	}
	if err := authn.ValidatePassword(body.Password); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeInvalidBody, err.Error())
	}

	hash, err := authn.HashPassword(body.Password,
		h.Cfg.Argon2Memory, h.Cfg.Argon2Iterations, h.Cfg.Argon2Parallelism, h.Cfg.Argon2SaltLength, h.Cfg.Argon2KeyLength)
	if err != nil {
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "an internal error occurred")
	}

	user, err := usermgmt.AcceptInvitation(c.Context(), h.Users, body.Token, body.Username, hash)
	if err != nil {
		switch {
		case errors.Is(err, usermgmt.ErrNotFound):
			return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeInvalidBody, "invitation not found")
		case errors.Is(err, usermgmt.ErrExpiredToken):
			return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeInvalidBody, "invitation has expired")
		case errors.Is(err, usermgmt.ErrAlreadyExists):
			return httputil.Fail(c, fiber.StatusConflict, httputil.CodeAlreadyExists, "an account for this email already exists")
		default:
			return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "an internal error occurred")
		}
	}

	token, err := authn.NewAccessToken(user.ID.String(), user.Username, user.IsAdmin, "", h.Cfg.JWTSecret, h.Cfg.JWTAccessTTL, h.Cfg.JWTIssuer)
	if err != nil {
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "an internal error occurred")
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, fiber.Map{
		"user": fiber.Map{
			"id":       user.ID,
			"email":    user.Email,
			"username": user.Username,
		},
		"access_token": token,
	})
}
