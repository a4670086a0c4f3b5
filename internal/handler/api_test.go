package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/novabrands/storefront-api/internal/config"
	"github.com/novabrands/storefront-api/internal/handler"
	"github.com/novabrands/storefront-api/internal/middleware"
	"github.com/novabrands/storefront-api/internal/model"
	"github.com/novabrands/storefront-api/internal/queue"
	"github.com/novabrands/storefront-api/internal/repository"
	"github.com/novabrands/storefront-api/internal/session"
	"github.com/novabrands/storefront-api/internal/utils"
)

// ----- fakes -----

type fakeUsers struct {
	users     []*model.User
	deleted   []string
	createErr error
}

func (f *fakeUsers) Create(_ context.Context, u *model.User, password string, cost int) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	u.ID = uint64(len(f.users) + 1)
	u.PasswordHash = hash
	cp := *u
	f.users = append(f.users, &cp)
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, userID string) (*model.User, error) {
	for _, u := range f.users {
		if u.UserID == userID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUsers) List(_ context.Context, excludeUserID string) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if u.UserID == excludeUserID {
			continue
		}
		cp := *u
		cp.PasswordHash = ""
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeUsers) Delete(_ context.Context, userID string) error {
	for i, u := range f.users {
		if u.UserID == userID {
			f.users = append(f.users[:i], f.users[i+1:]...)
			f.deleted = append(f.deleted, userID)
			return nil
		}
	}
	return repository.ErrUserNotFound
}

type fakeProducts struct {
	rows      []*model.Product
	updated   *model.Product
	deleted   []string
	createErr error
	updateErr error
}

func (f *fakeProducts) ListActive(_ context.Context, category string) ([]model.Product, error) {
	var out []model.Product
	for _, p := range f.rows {
		if !p.IsActive {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProducts) GetByID(_ context.Context, productID string) (*model.Product, error) {
	for _, p := range f.rows {
		if p.ProductID == productID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (f *fakeProducts) Create(_ context.Context, p *model.Product) error {
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = uint64(len(f.rows) + 1)
	p.IsActive = true
	cp := *p
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeProducts) Update(_ context.Context, p *model.Product) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *p
	f.updated = &cp
	for i, row := range f.rows {
		if row.ProductID == p.ProductID {
			f.rows[i] = &cp
		}
	}
	return nil
}

func (f *fakeProducts) Delete(_ context.Context, productID string) error {
	for i, p := range f.rows {
		if p.ProductID == productID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			f.deleted = append(f.deleted, productID)
			return nil
		}
	}
	return repository.ErrProductNotFound
}

type fakeSessions struct {
	byToken map[string]session.Session
	n       int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byToken: make(map[string]session.Session)}
}

func (f *fakeSessions) Create(_ context.Context, s session.Session) (string, error) {
	f.n++
	token := fmt.Sprintf("tok%d", f.n)
	f.byToken[token] = s
	return token, nil
}

func (f *fakeSessions) Delete(_ context.Context, token string) error {
	delete(f.byToken, token)
	return nil
}

type fakeImages struct {
	saved   []string
	removed []string
	saveErr error
	n       int
}

func (f *fakeImages) save() (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.n++
	rel := fmt.Sprintf("uploads/img%d.png", f.n)
	f.saved = append(f.saved, rel)
	return rel, nil
}

func (f *fakeImages) SaveUpload(_ *multipart.FileHeader) (string, error) { return f.save() }
func (f *fakeImages) SaveDataURI(_ string) (string, error)               { return f.save() }

func (f *fakeImages) Remove(rel string) error {
	f.removed = append(f.removed, rel)
	return nil
}

// ----- harness -----

type testEnv struct {
	api      *handler.API
	users    *fakeUsers
	products *fakeProducts
	sessions *fakeSessions
	images   *fakeImages
	events   []queue.ActivityEvent
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:    &fakeUsers{},
		products: &fakeProducts{},
		sessions: newFakeSessions(),
		images:   &fakeImages{},
	}
	cfg := config.Config{
		Env:        "dev",
		BcryptCost: bcrypt.MinCost,
		SessionTTL: time.Hour,
	}
	env.api = handler.NewAPI(cfg, env.users, env.products, env.sessions, env.images,
		func(_ context.Context, ev queue.ActivityEvent) error {
			env.events = append(env.events, ev)
			return nil
		})
	return env
}

// do posts a JSON envelope to the API, optionally carrying a resolved
// session the way the cookie middleware would.
func (env *testEnv) do(t *testing.T, sess *session.Session, body string) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sess != nil {
		middleware.SetSession(c, sess)
	}
	require.NoError(t, env.api.Handle(c))
	require.Equal(t, http.StatusOK, rec.Code, "the contract always answers 200")

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out, rec
}

func (env *testEnv) register(t *testing.T, email string) *model.User {
	t.Helper()
	out, _ := env.do(t, nil, fmt.Sprintf(
		`{"type":"register","firstName":"Ada","lastName":"Lovelace","email":%q,"password":"long-enough-pw"}`, email))
	require.Equal(t, true, out["success"], "register failed: %v", out["message"])
	u, err := env.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

func adminSession() *session.Session {
	return &session.Session{UserID: "admin_1_x", Email: "admin@store.test", IsAdmin: true}
}

// ----- auth -----

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv()
	env.register(t, "ada@example.com")

	out, _ := env.do(t, nil,
		`{"type":"register","firstName":"Eve","lastName":"Clone","email":"ada@example.com","password":"long-enough-pw"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, "an account with this email already exists", out["message"])
	require.Len(t, env.users.users, 1, "no second row may appear")
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv()
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing fields", `{"type":"register","firstName":"Ada"}`, "all fields are required"},
		{"bad email", `{"type":"register","firstName":"A","lastName":"B","email":"not-an-email","password":"long-enough-pw"}`, "invalid email address"},
		{"short password", `{"type":"register","firstName":"A","lastName":"B","email":"a@b.test","password":"short"}`, "password must be at least 8 characters"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, _ := env.do(t, nil, tc.body)
			require.Equal(t, false, out["success"])
			require.Equal(t, tc.msg, out["message"])
		})
	}
	require.Empty(t, env.users.users)
}

func TestLoginSuccessSetsSessionCookie(t *testing.T) {
	env := newTestEnv()
	u := env.register(t, "ada@example.com")

	out, rec := env.do(t, nil, `{"type":"login","email":"ada@example.com","password":"long-enough-pw"}`)
	require.Equal(t, true, out["success"])

	user := out["user"].(map[string]any)
	require.Equal(t, u.UserID, user["id"])
	require.Equal(t, false, user["isAdmin"])

	var found *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName {
			found = ck
		}
	}
	require.NotNil(t, found, "session cookie must be set")
	require.True(t, found.HttpOnly)
	require.NotEmpty(t, found.Value)
	require.Contains(t, env.sessions.byToken, found.Value)
}

func TestLoginFailureMessageLeaksNothing(t *testing.T) {
	// Wrong password and unknown email must be indistinguishable from
	// the response alone.
	env := newTestEnv()
	env.register(t, "ada@example.com")

	wrongPw, _ := env.do(t, nil, `{"type":"login","email":"ada@example.com","password":"not-the-password"}`)
	unknown, _ := env.do(t, nil, `{"type":"login","email":"nobody@example.com","password":"whatever-pw"}`)

	require.Equal(t, false, wrongPw["success"])
	require.Equal(t, false, unknown["success"])
	require.Equal(t, wrongPw["message"], unknown["message"])
	require.Equal(t, "invalid email or password", wrongPw["message"])
	require.Empty(t, env.sessions.byToken, "no session may exist after failed logins")
}

func TestCheckAdmin(t *testing.T) {
	env := newTestEnv()

	out, _ := env.do(t, nil, `{"type":"check_admin"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, false, out["isAdmin"])

	out, _ = env.do(t, &session.Session{UserID: "user_1_x"}, `{"type":"check_admin"}`)
	require.Equal(t, false, out["isAdmin"])

	out, _ = env.do(t, adminSession(), `{"type":"check_admin"}`)
	require.Equal(t, true, out["success"])
	require.Equal(t, true, out["isAdmin"])
}

func TestLogoutClearsCookieAndSession(t *testing.T) {
	env := newTestEnv()
	env.register(t, "ada@example.com")
	_, loginRec := env.do(t, nil, `{"type":"login","email":"ada@example.com","password":"long-enough-pw"}`)

	var token string
	for _, ck := range loginRec.Result().Cookies() {
		if ck.Name == session.CookieName {
			token = ck.Value
		}
	}
	require.NotEmpty(t, token)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"type":"logout"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	rec := httptest.NewRecorder()
	require.NoError(t, env.api.Handle(e.NewContext(req, rec)))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, true, out["success"])
	require.NotContains(t, env.sessions.byToken, token, "session must be revoked")

	var cleared *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName {
			cleared = ck
		}
	}
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)
}

// ----- dispatch and gating -----

func TestUnknownDiscriminatorRejected(t *testing.T) {
	env := newTestEnv()

	out, _ := env.do(t, adminSession(), `{"type":"frobnicate"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, "invalid request type", out["message"])

	out, _ = env.do(t, adminSession(), `{"action":"frobnicate"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, "invalid action", out["message"])

	out, _ = env.do(t, adminSession(), `{}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, "invalid request", out["message"])
}

func TestAdminGateBlocksBeforeAnyWork(t *testing.T) {
	env := newTestEnv()
	env.products.rows = []*model.Product{{ProductID: "product_1_x", Name: "Serum", Category: model.CategorySkincare, Price: 10, IsActive: true}}

	for _, sess := range []*session.Session{nil, {UserID: "user_1_x", IsAdmin: false}} {
		out, _ := env.do(t, sess, `{"type":"delete_product","product_id":"product_1_x"}`)
		require.Equal(t, false, out["success"])
		require.Equal(t, "administrator access required", out["message"])
	}
	require.Empty(t, env.products.deleted, "gated operation must not touch the store")
	require.Len(t, env.products.rows, 1)
}

func TestRegisteredUserCannotReachAdminOperations(t *testing.T) {
	env := newTestEnv()
	env.register(t, "ada@example.com")
	_, rec := env.do(t, nil, `{"type":"login","email":"ada@example.com","password":"long-enough-pw"}`)

	var token string
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName {
			token = ck.Value
		}
	}
	sess := env.sessions.byToken[token]
	require.False(t, sess.IsAdmin, "self-registration never grants admin")

	out, _ := env.do(t, &sess, `{"type":"get_users"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, "administrator access required", out["message"])
}

// ----- catalog -----

func TestGetProductsPublicView(t *testing.T) {
	env := newTestEnv()
	env.products.rows = []*model.Product{
		{ProductID: "product_1_a", Name: "Serum", Category: model.CategorySkincare, Price: 12.5, Stock: 3, ImageURL: "uploads/a.png", IsActive: true},
		{ProductID: "product_2_b", Name: "Oil", Category: model.CategoryHaircare, Price: 8, IsActive: true},
		{ProductID: "product_3_c", Name: "Hidden", Category: model.CategorySkincare, Price: 5, IsActive: false},
	}

	out, _ := env.do(t, nil, `{"type":"get_products"}`)
	require.Equal(t, true, out["success"])
	require.Equal(t, float64(2), out["count"], "inactive rows stay hidden")

	products := out["products"].([]any)
	first := products[0].(map[string]any)
	require.Equal(t, "$12.50", first["price"], "price is presentation-formatted")
	require.Equal(t, "uploads/a.png", first["image"])

	second := products[1].(map[string]any)
	require.Contains(t, second["image"], "via.placeholder.com", "missing image gets a placeholder")

	out, _ = env.do(t, nil, `{"type":"get_products","category":"haircare"}`)
	require.Equal(t, float64(1), out["count"])
}

func TestAddProductStoresImageFirst(t *testing.T) {
	env := newTestEnv()

	out, _ := env.do(t, adminSession(),
		`{"action":"add_product","name":"Serum","category":"skincare","price":19.99,"stock":5,"image":"data:image/png;base64,AAAA"}`)
	require.Equal(t, true, out["success"])
	require.Len(t, env.products.rows, 1)
	require.Equal(t, "uploads/img1.png", env.products.rows[0].ImageURL)
	require.Empty(t, env.images.removed)

	require.Len(t, env.events, 1)
	require.Equal(t, queue.ActionProductCreated, env.events[0].Action)
}

func TestAddProductValidation(t *testing.T) {
	env := newTestEnv()
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"zero price", `{"action":"add_product","name":"X","category":"skincare","price":0}`, "product information is incomplete"},
		{"missing name", `{"action":"add_product","category":"skincare","price":5}`, "product information is incomplete"},
		{"unknown category", `{"action":"add_product","name":"X","category":"gadgets","price":5}`, "unknown product category"},
		{"negative stock", `{"action":"add_product","name":"X","category":"skincare","price":5,"stock":-1}`, "stock cannot be negative"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, _ := env.do(t, adminSession(), tc.body)
			require.Equal(t, false, out["success"])
			require.Equal(t, tc.msg, out["message"])
		})
	}
	require.Empty(t, env.products.rows)
	require.Empty(t, env.images.saved, "nothing gets ingested for an invalid payload")
}

func TestAddProductRemovesImageWhenInsertFails(t *testing.T) {
	env := newTestEnv()
	env.products.createErr = fmt.Errorf("connection reset")

	out, _ := env.do(t, adminSession(),
		`{"action":"add_product","name":"Serum","category":"skincare","price":19.99,"image":"data:image/png;base64,AAAA"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, "a database error occurred", out["message"])
	require.Equal(t, []string{"uploads/img1.png"}, env.images.removed, "orphaned file must be compensated away")
}

func TestUpdateProductKeepsImageWithoutReplacement(t *testing.T) {
	env := newTestEnv()
	env.products.rows = []*model.Product{
		{ProductID: "product_1_a", Name: "Serum", Category: model.CategorySkincare, Price: 10, ImageURL: "uploads/old.png", IsActive: true},
	}

	out, _ := env.do(t, adminSession(),
		`{"type":"update_product","product_id":"product_1_a","name":"Serum v2","category":"skincare","price":12}`)
	require.Equal(t, true, out["success"])
	require.Equal(t, "uploads/old.png", env.products.updated.ImageURL, "image survives an update without a new one")
	require.Equal(t, "Serum v2", env.products.updated.Name)
	require.Empty(t, env.images.removed)
}

func TestUpdateProductReplacesAndCleansOldImage(t *testing.T) {
	env := newTestEnv()
	env.products.rows = []*model.Product{
		{ProductID: "product_1_a", Name: "Serum", Category: model.CategorySkincare, Price: 10, ImageURL: "uploads/old.png", IsActive: true},
	}

	out, _ := env.do(t, adminSession(),
		`{"type":"update_product","product_id":"product_1_a","name":"Serum","category":"skincare","price":12,"image":"data:image/png;base64,AAAA"}`)
	require.Equal(t, true, out["success"])
	require.Equal(t, "uploads/img1.png", env.products.updated.ImageURL)
	require.Equal(t, []string{"uploads/old.png"}, env.images.removed, "old file goes only after the row update")
}

func TestUpdateProductCompensatesWhenRowUpdateFails(t *testing.T) {
	env := newTestEnv()
	env.products.rows = []*model.Product{
		{ProductID: "product_1_a", Name: "Serum", Category: model.CategorySkincare, Price: 10, ImageURL: "uploads/old.png", IsActive: true},
	}
	env.products.updateErr = fmt.Errorf("lock wait timeout")

	out, _ := env.do(t, adminSession(),
		`{"type":"update_product","product_id":"product_1_a","name":"Serum","category":"skincare","price":12,"image":"data:image/png;base64,AAAA"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, []string{"uploads/img1.png"}, env.images.removed,
		"the new file is compensated away; the old one must survive")
}

func TestDeleteProductRemovesManagedImageOnly(t *testing.T) {
	env := newTestEnv()
	env.products.rows = []*model.Product{
		{ProductID: "product_1_a", Name: "Serum", Category: model.CategorySkincare, Price: 10, ImageURL: "uploads/a.png", IsActive: true},
		{ProductID: "product_2_b", Name: "Oil", Category: model.CategoryHaircare, Price: 8, ImageURL: "https://cdn.example.com/oil.png", IsActive: true},
	}

	out, _ := env.do(t, adminSession(), `{"type":"delete_product","product_id":"product_1_a"}`)
	require.Equal(t, true, out["success"])
	require.Equal(t, []string{"uploads/a.png"}, env.images.removed)

	out, _ = env.do(t, adminSession(), `{"type":"delete_product","product_id":"product_2_b"}`)
	require.Equal(t, true, out["success"])
	require.Equal(t, []string{"uploads/a.png"}, env.images.removed, "external URLs are never passed to Remove")
	require.Len(t, env.products.deleted, 2)
}

func TestDeleteProductUnknownID(t *testing.T) {
	env := newTestEnv()

	out, _ := env.do(t, adminSession(), `{"type":"delete_product","product_id":"product_9_z"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, "product not found", out["message"])
}

// ----- user directory -----

func TestGetUsersExcludesCaller(t *testing.T) {
	env := newTestEnv()
	env.register(t, "ada@example.com")
	env.register(t, "bob@example.com")
	admin := adminSession()
	env.users.users = append(env.users.users, &model.User{
		UserID: admin.UserID, FirstName: "Store", LastName: "Admin", Email: admin.Email, IsAdmin: true,
	})

	out, _ := env.do(t, admin, `{"type":"get_users"}`)
	require.Equal(t, true, out["success"])
	require.Equal(t, float64(2), out["count"], "the caller's own account stays out of the list")
}

func TestDeleteUserGuards(t *testing.T) {
	env := newTestEnv()
	target := env.register(t, "ada@example.com")
	admin := adminSession()
	env.users.users = append(env.users.users, &model.User{
		UserID: admin.UserID, FirstName: "Store", LastName: "Admin", Email: admin.Email, IsAdmin: true,
	})

	// Self-deletion refused before anything is looked up.
	out, _ := env.do(t, admin, fmt.Sprintf(`{"type":"delete_user","user_id":%q}`, admin.UserID))
	require.Equal(t, false, out["success"])
	require.Equal(t, "you cannot delete your own account", out["message"])

	// Another admin account is protected too.
	other := &model.User{UserID: "admin_2_y", FirstName: "Second", LastName: "Admin", Email: "two@store.test", IsAdmin: true}
	env.users.users = append(env.users.users, other)
	out, _ = env.do(t, admin, `{"type":"delete_user","user_id":"admin_2_y"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, "administrator accounts cannot be deleted", out["message"])
	require.Empty(t, env.users.deleted)

	// A regular account deletes fine.
	out, _ = env.do(t, admin, fmt.Sprintf(`{"type":"delete_user","user_id":%q}`, target.UserID))
	require.Equal(t, true, out["success"])
	require.Equal(t, "Ada Lovelace", out["deleted_user"])
	require.Equal(t, []string{target.UserID}, env.users.deleted)

	require.Len(t, env.events, 2, "the register plus the delete")
	require.Equal(t, queue.ActionUserDeleted, env.events[1].Action)
}

func TestGetUserDetails(t *testing.T) {
	env := newTestEnv()
	u := env.register(t, "ada@example.com")

	out, _ := env.do(t, adminSession(), fmt.Sprintf(`{"type":"get_user_details","user_id":%q}`, u.UserID))
	require.Equal(t, true, out["success"])
	detail := out["user"].(map[string]any)
	require.Equal(t, "Ada Lovelace", detail["full_name"])
	require.Equal(t, "email", detail["contact_type"])
	require.Equal(t, "user", detail["role"])

	out, _ = env.do(t, adminSession(), `{"type":"get_user_details","user_id":"user_9_z"}`)
	require.Equal(t, false, out["success"])
	require.Equal(t, "user not found", out["message"])
}
