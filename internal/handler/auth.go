package handler

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/novabrands/storefront-api/internal/apperr"
	"github.com/novabrands/storefront-api/internal/model"
	"github.com/novabrands/storefront-api/internal/queue"
	"github.com/novabrands/storefront-api/internal/repository"
	"github.com/novabrands/storefront-api/internal/session"
	"github.com/novabrands/storefront-api/internal/utils"
)

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type registerReq struct {
	FirstName  string `json:"firstName" form:"firstName"`
	LastName   string `json:"lastName" form:"lastName"`
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	Newsletter bool   `json:"newsletter" form:"newsletter"`
}

// userSummary is the public shape of a user returned by auth
// operations; it never carries the password hash.
type userSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Name      string `json:"name"`
	IsAdmin   bool   `json:"isAdmin"`
}

func summarize(u *model.User) userSummary {
	return userSummary{
		ID:        u.UserID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Name:      u.FullName(),
		IsAdmin:   u.IsAdmin,
	}
}

// handleLogin verifies credentials and establishes a session snapshot.
// The failure message is identical for an unknown email and a wrong
// password so the endpoint leaks nothing about which field was wrong.
func (a *API) handleLogin(c echo.Context, _ *session.Session) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return a.failWith(c, "login", fmt.Errorf("bind: %w", err), "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return a.failWith(c, "login", apperr.ErrValidation, "email and password are required")
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	u, err := a.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return a.failErr(c, "login", fmt.Errorf("email %q: %w", req.Email, apperr.ErrBadCredentials))
		}
		return a.failErr(c, "login", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return a.failErr(c, "login", fmt.Errorf("user %s: %w", u.UserID, apperr.ErrBadCredentials))
	}

	token, err := a.sessions.Create(ctx, session.Session{
		UserID:  u.UserID,
		Email:   u.Email,
		IsAdmin: u.IsAdmin,
	})
	if err != nil {
		return a.failWith(c, "login", err, "login is temporarily unavailable")
	}
	a.setSessionCookie(c, token, int(a.cfg.SessionTTL.Seconds()))

	log.Info().Str("user_id", u.UserID).Bool("is_admin", u.IsAdmin).Msg("login successful")
	return respond(c, echo.Map{"user": summarize(u)})
}

// handleRegister creates a non-admin account. Uniqueness rides on the
// users.email index, so a concurrent duplicate registration loses with
// a conflict instead of a second row.
func (a *API) handleRegister(c echo.Context, _ *session.Session) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return a.failWith(c, "register", fmt.Errorf("bind: %w", err), "invalid request body")
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		return a.failWith(c, "register", apperr.ErrValidation, "all fields are required")
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return a.failWith(c, "register", apperr.ErrValidation, "invalid email address")
	}
	if len(req.Password) < 8 {
		return a.failWith(c, "register", apperr.ErrValidation, "password must be at least 8 characters")
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	u := &model.User{
		UserID:     utils.NewEntityID("user"),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Newsletter: req.Newsletter,
	}
	if err := a.users.Create(ctx, u, req.Password, a.cfg.BcryptCost); err != nil {
		return a.failErr(c, "register", fmt.Errorf("create user: %w", err))
	}

	_ = a.publish(ctx, queue.ActivityEvent{
		Action:     queue.ActionUserRegistered,
		EntityType: "user",
		EntityID:   u.UserID,
		Detail:     u.Email,
		OccurredAt: time.Now().UTC(),
	})

	log.Info().Str("user_id", u.UserID).Msg("user registered")
	return respond(c, echo.Map{
		"message": "account created successfully",
		"user":    summarize(u),
	})
}

// handleCheckAdmin reports whether the current session carries the
// admin flag. An absent session is an ordinary false, never an error.
// The `success` field mirrors the flag because the admin front end
// keys off it.
func (a *API) handleCheckAdmin(c echo.Context, sess *session.Session) error {
	isAdmin := sess != nil && sess.IsAdmin
	return c.JSON(http.StatusOK, echo.Map{
		"success": isAdmin,
		"isAdmin": isAdmin,
	})
}

// handleLogout invalidates the session token and expires the cookie.
// Calling it with no active session still succeeds.
func (a *API) handleLogout(c echo.Context, _ *session.Session) error {
	if cookie, err := c.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		ctx, cancel := opCtx(c)
		defer cancel()
		if err := a.sessions.Delete(ctx, cookie.Value); err != nil {
			// The cookie is cleared regardless and the entry expires on
			// its own TTL, so this stays a successful logout.
			log.Warn().Err(err).Msg("session delete failed")
		}
	}
	a.setSessionCookie(c, "", -1)
	return respond(c, echo.Map{"message": "logged out successfully"})
}

func (a *API) setSessionCookie(c echo.Context, token string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure(),
		SameSite: http.SameSiteLaxMode,
	})
}
