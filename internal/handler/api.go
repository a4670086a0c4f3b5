// Package handler implements the storefront API: a single POST /api
// endpoint whose JSON (or form) envelope carries a discriminator field
// selecting the operation. Read/auth/admin-query operations use `type`,
// the create-product operation uses `action`. Responses always ship an
// HTTP 200 with a {success, message, ...} body; callers inspect
// `success`, never the status code.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/novabrands/storefront-api/internal/apperr"
	"github.com/novabrands/storefront-api/internal/config"
	"github.com/novabrands/storefront-api/internal/middleware"
	"github.com/novabrands/storefront-api/internal/model"
	"github.com/novabrands/storefront-api/internal/queue"
	"github.com/novabrands/storefront-api/internal/repository"
	"github.com/novabrands/storefront-api/internal/session"
	"github.com/novabrands/storefront-api/internal/upload"
)

// Envelope bodies are capped well above the 10 MiB image limit to
// leave room for base64 inflation plus the rest of the payload.
const maxEnvelopeBytes = 16 << 20

// UserStore is the slice of the user repository the handlers consume.
type UserStore interface {
	Create(ctx context.Context, u *model.User, password string, cost int) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	List(ctx context.Context, excludeUserID string) ([]model.User, error)
	Delete(ctx context.Context, userID string) error
}

// ProductStore is the slice of the product repository the handlers
// consume.
type ProductStore interface {
	ListActive(ctx context.Context, category string) ([]model.Product, error)
	GetByID(ctx context.Context, productID string) (*model.Product, error)
	Create(ctx context.Context, p *model.Product) error
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, productID string) error
}

// SessionStore issues and revokes server-side sessions.
type SessionStore interface {
	Create(ctx context.Context, s session.Session) (string, error)
	Delete(ctx context.Context, token string) error
}

// ImageStore is the ingestion pipeline surface.
type ImageStore interface {
	SaveUpload(fh *multipart.FileHeader) (string, error)
	SaveDataURI(uri string) (string, error)
	Remove(rel string) error
}

// ActivityPublisher emits a best-effort audit event after a successful
// mutation. Errors are the publisher's problem; handlers ignore them.
type ActivityPublisher func(ctx context.Context, ev queue.ActivityEvent) error

// API bundles the dependencies for every /api operation and owns the
// closed dispatch tables.
type API struct {
	cfg      config.Config
	users    UserStore
	products ProductStore
	sessions SessionStore
	images   ImageStore
	publish  ActivityPublisher

	typeOps   map[string]operation
	actionOps map[string]operation
}

// operation couples a handler with its gate. adminOnly entries fail
// with an authorization message before the handler body runs.
type operation struct {
	name      string
	adminOnly bool
	handle    func(c echo.Context, sess *session.Session) error
}

// NewAPI wires the dispatch tables. publish may be nil when no broker
// is configured.
func NewAPI(cfg config.Config, users UserStore, products ProductStore, sessions SessionStore, images ImageStore, publish ActivityPublisher) *API {
	a := &API{cfg: cfg, users: users, products: products, sessions: sessions, images: images, publish: publish}
	if a.publish == nil {
		a.publish = func(context.Context, queue.ActivityEvent) error { return nil }
	}
	a.typeOps = map[string]operation{
		"login":               {name: "login", handle: a.handleLogin},
		"register":            {name: "register", handle: a.handleRegister},
		"check_admin":         {name: "check_admin", handle: a.handleCheckAdmin},
		"logout":              {name: "logout", handle: a.handleLogout},
		"get_products":        {name: "get_products", handle: a.handleGetProducts},
		"get_product":         {name: "get_product", adminOnly: true, handle: a.handleGetProduct},
		"get_product_details": {name: "get_product_details", adminOnly: true, handle: a.handleGetProductDetails},
		"update_product":      {name: "update_product", adminOnly: true, handle: a.handleUpdateProduct},
		"delete_product":      {name: "delete_product", adminOnly: true, handle: a.handleDeleteProduct},
		"get_users":           {name: "get_users", adminOnly: true, handle: a.handleGetUsers},
		"get_user_details":    {name: "get_user_details", adminOnly: true, handle: a.handleGetUserDetails},
		"delete_user":         {name: "delete_user", adminOnly: true, handle: a.handleDeleteUser},
	}
	a.actionOps = map[string]operation{
		"add_product": {name: "add_product", adminOnly: true, handle: a.handleAddProduct},
	}
	return a
}

// Handle is the single entry point behind POST /api. It extracts the
// discriminator, looks the operation up in the closed tables, runs the
// admin gate, and only then lets the operation touch the payload.
func (a *API) Handle(c echo.Context) error {
	typ, action, err := a.readDiscriminator(c)
	if err != nil {
		return a.failWith(c, "envelope", err, "invalid request")
	}

	var op operation
	var ok bool
	switch {
	case typ != "":
		op, ok = a.typeOps[typ]
		if !ok {
			return a.failWith(c, "dispatch",
				fmt.Errorf("type %q: %w", typ, apperr.ErrUnknownRequest), "invalid request type")
		}
	case action != "":
		op, ok = a.actionOps[action]
		if !ok {
			return a.failWith(c, "dispatch",
				fmt.Errorf("action %q: %w", action, apperr.ErrUnknownRequest), "invalid action")
		}
	default:
		return a.failWith(c, "dispatch", apperr.ErrUnknownRequest, "invalid request")
	}

	sess := middleware.SessionFromContext(c)
	if op.adminOnly && (sess == nil || !sess.IsAdmin) {
		return a.failWith(c, op.name,
			fmt.Errorf("admin gate: %w", apperr.ErrForbidden), "administrator access required")
	}
	return op.handle(c, sess)
}

// readDiscriminator pulls type/action out of the envelope without
// consuming it: JSON bodies are buffered and restored so the operation
// can bind its own request struct afterwards; form envelopes go through
// Echo's cached form parsing.
func (a *API) readDiscriminator(c echo.Context) (typ, action string, err error) {
	req := c.Request()
	ctype := req.Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEApplicationJSON) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxEnvelopeBytes))
		if err != nil {
			return "", "", fmt.Errorf("read body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		var env struct {
			Type   string `json:"type"`
			Action string `json:"action"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &env); err != nil {
				return "", "", fmt.Errorf("decode envelope: %w: %v", apperr.ErrValidation, err)
			}
		}
		return env.Type, env.Action, nil
	}
	return c.FormValue("type"), c.FormValue("action"), nil
}

// opCtx bounds every database call the way all handlers in this
// package do.
func opCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// respond ships a success envelope.
func respond(c echo.Context, payload echo.Map) error {
	if _, ok := payload["success"]; !ok {
		payload["success"] = true
	}
	return c.JSON(http.StatusOK, payload)
}

// failWith logs the underlying error with operation context and
// answers the user-safe message. Internal details never reach the
// caller.
func (a *API) failWith(c echo.Context, op string, err error, msg string) error {
	log.Error().Err(err).Str("op", op).Msg("request failed")
	return c.JSON(http.StatusOK, echo.Map{"success": false, "message": msg})
}

// failErr is failWith with the message derived from the error class.
func (a *API) failErr(c echo.Context, op string, err error) error {
	return a.failWith(c, op, err, messageFor(err))
}

// messageFor translates an error into the localized, user-safe message
// for the response envelope.
func messageFor(err error) string {
	var ingestErr *upload.Error
	switch {
	case errors.As(err, &ingestErr):
		switch ingestErr.Reason {
		case upload.ReasonTooLarge:
			return "image exceeds the 10MB size limit"
		case upload.ReasonWrongType:
			return "unsupported image format"
		case upload.ReasonNotImage:
			return "the uploaded file is not a valid image"
		case upload.ReasonUnwritable:
			return "image storage is unavailable"
		default:
			return "failed to process the image"
		}
	case errors.Is(err, apperr.ErrUnknownRequest):
		return "invalid request type"
	case errors.Is(err, repository.ErrEmailExists), errors.Is(err, apperr.ErrConflict):
		return "an account with this email already exists"
	case errors.Is(err, repository.ErrProductNotFound):
		return "product not found"
	case errors.Is(err, repository.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, apperr.ErrBadCredentials):
		return "invalid email or password"
	case errors.Is(err, apperr.ErrForbidden):
		return "administrator access required"
	case errors.Is(err, apperr.ErrSelfDelete):
		return "you cannot delete your own account"
	case errors.Is(err, apperr.ErrProtectedUser):
		return "administrator accounts cannot be deleted"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid input"
	default:
		return "a database error occurred"
	}
}

// formFile returns the uploaded image file when the envelope arrived as
// multipart form data, nil otherwise. Only files delivered by the
// multipart parser are ever accepted; a client cannot point the
// pipeline at an arbitrary filesystem path.
func formFile(c echo.Context) *multipart.FileHeader {
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
		return nil
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return nil
	}
	return fh
}
