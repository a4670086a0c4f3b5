package handler

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/novabrands/storefront-api/internal/apperr"
	"github.com/novabrands/storefront-api/internal/model"
	"github.com/novabrands/storefront-api/internal/queue"
	"github.com/novabrands/storefront-api/internal/session"
)

type userIDReq struct {
	UserID string `json:"user_id" form:"user_id"`
}

// userDetail is the directory shape for the admin screens. It never
// carries the password hash or raw contact values beyond what the
// admin list needs.
type userDetail struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FullName    string    `json:"full_name"`
	ContactType string    `json:"contact_type"`
	IsAdmin     bool      `json:"is_admin"`
	IsVerified  bool      `json:"is_verified"`
	Newsletter  bool      `json:"newsletter"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Status      string    `json:"status"`
	Role        string    `json:"role"`
}

func detailView(u *model.User) userDetail {
	role := "user"
	if u.IsAdmin {
		role = "admin"
	}
	return userDetail{
		ID:          u.UserID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		ContactType: u.ContactType(),
		IsAdmin:     u.IsAdmin,
		IsVerified:  u.IsVerified,
		Newsletter:  u.Newsletter,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		Status:      "active",
		Role:        role,
	}
}

// handleGetUsers lists every account except the calling admin's own.
func (a *API) handleGetUsers(c echo.Context, sess *session.Session) error {
	ctx, cancel := opCtx(c)
	defer cancel()

	users, err := a.users.List(ctx, sess.UserID)
	if err != nil {
		return a.failErr(c, "get_users", err)
	}
	out := make([]userDetail, 0, len(users))
	for i := range users {
		out = append(out, detailView(&users[i]))
	}
	return respond(c, echo.Map{"users": out, "count": len(out)})
}

// handleGetUserDetails returns one account for the admin detail view.
func (a *API) handleGetUserDetails(c echo.Context, _ *session.Session) error {
	var req userIDReq
	if err := c.Bind(&req); err != nil {
		return a.failWith(c, "get_user_details", fmt.Errorf("bind: %w", err), "invalid request body")
	}
	if req.UserID == "" {
		return a.failWith(c, "get_user_details", apperr.ErrValidation, "user id is required")
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	u, err := a.users.GetByID(ctx, req.UserID)
	if err != nil {
		return a.failErr(c, "get_user_details", fmt.Errorf("user %s: %w", req.UserID, err))
	}
	return respond(c, echo.Map{"user": detailView(u)})
}

// handleDeleteUser removes an account. Two independent guards run
// before anything destructive: the caller cannot delete their own
// account, and no account carrying the admin flag can be deleted.
func (a *API) handleDeleteUser(c echo.Context, sess *session.Session) error {
	var req userIDReq
	if err := c.Bind(&req); err != nil {
		return a.failWith(c, "delete_user", fmt.Errorf("bind: %w", err), "invalid request body")
	}
	if req.UserID == "" {
		return a.failWith(c, "delete_user", apperr.ErrValidation, "user id is required")
	}
	if req.UserID == sess.UserID {
		return a.failErr(c, "delete_user", fmt.Errorf("user %s: %w", req.UserID, apperr.ErrSelfDelete))
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	target, err := a.users.GetByID(ctx, req.UserID)
	if err != nil {
		return a.failErr(c, "delete_user", fmt.Errorf("user %s: %w", req.UserID, err))
	}
	if target.IsAdmin {
		return a.failErr(c, "delete_user", fmt.Errorf("user %s: %w", req.UserID, apperr.ErrProtectedUser))
	}

	if err := a.users.Delete(ctx, req.UserID); err != nil {
		return a.failErr(c, "delete_user", fmt.Errorf("delete user %s: %w", req.UserID, err))
	}

	_ = a.publish(ctx, queue.ActivityEvent{
		Action:     queue.ActionUserDeleted,
		EntityType: "user",
		EntityID:   target.UserID,
		ActorID:    sess.UserID,
		Detail:     target.FullName(),
		OccurredAt: time.Now().UTC(),
	})

	log.Info().Str("user_id", target.UserID).Str("actor", sess.UserID).Msg("user deleted")
	return respond(c, echo.Map{
		"message":      "user deleted successfully",
		"deleted_user": target.FullName(),
	})
}
