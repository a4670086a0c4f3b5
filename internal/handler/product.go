package handler

import (
	"fmt"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/novabrands/storefront-api/internal/apperr"
	"github.com/novabrands/storefront-api/internal/model"
	"github.com/novabrands/storefront-api/internal/queue"
	"github.com/novabrands/storefront-api/internal/session"
	"github.com/novabrands/storefront-api/internal/upload"
	"github.com/novabrands/storefront-api/internal/utils"
)

// ----- DTOs -----

type listProductsReq struct {
	Category string `json:"category" form:"category"`
}

type productIDReq struct {
	ProductID string `json:"product_id" form:"product_id"`
}

type productWriteReq struct {
	ProductID   string  `json:"product_id" form:"product_id"`
	Name        string  `json:"name" form:"name"`
	Category    string  `json:"category" form:"category"`
	Price       float64 `json:"price" form:"price"`
	Stock       int     `json:"stock" form:"stock"`
	Description string  `json:"description" form:"description"`
	Image       string  `json:"image" form:"-"` // inline data URI; the multipart shape uses the `image` file field
}

// publicProduct is the storefront listing shape: presentation-ready
// price string and a placeholder when no image is stored.
type publicProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	Stock       int    `json:"stock"`
}

// adminProduct is the raw row shape used by the admin screens.
type adminProduct struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func publicView(p model.Product) publicProduct {
	image := p.ImageURL
	if image == "" {
		image = "https://via.placeholder.com/300x250/ffb6c1/000000?text=" + url.QueryEscape(p.Name)
	}
	return publicProduct{
		ID:          p.ProductID,
		Name:        p.Name,
		Description: p.Description,
		Price:       fmt.Sprintf("$%.2f", p.Price),
		Image:       image,
		Category:    p.Category,
		Stock:       p.Stock,
	}
}

func adminView(p *model.Product) adminProduct {
	return adminProduct{
		ID:          p.ProductID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// handleGetProducts is the unauthenticated storefront listing: active
// rows only, optionally narrowed to one category.
func (a *API) handleGetProducts(c echo.Context, _ *session.Session) error {
	var req listProductsReq
	if err := c.Bind(&req); err != nil {
		return a.failWith(c, "get_products", fmt.Errorf("bind: %w", err), "invalid request body")
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	products, err := a.products.ListActive(ctx, req.Category)
	if err != nil {
		return a.failErr(c, "get_products", err)
	}
	out := make([]publicProduct, 0, len(products))
	for _, p := range products {
		out = append(out, publicView(p))
	}
	return respond(c, echo.Map{"products": out, "count": len(out)})
}

// handleGetProduct returns the raw row for the admin screens,
// inactive rows included.
func (a *API) handleGetProduct(c echo.Context, _ *session.Session) error {
	return a.adminProductByID(c, "get_product")
}

// handleGetProductDetails is the edit-form variant of handleGetProduct;
// the envelope keeps both tags for compatibility with the storefront
// client.
func (a *API) handleGetProductDetails(c echo.Context, _ *session.Session) error {
	return a.adminProductByID(c, "get_product_details")
}

func (a *API) adminProductByID(c echo.Context, op string) error {
	var req productIDReq
	if err := c.Bind(&req); err != nil {
		return a.failWith(c, op, fmt.Errorf("bind: %w", err), "invalid request body")
	}
	if req.ProductID == "" {
		return a.failWith(c, op, apperr.ErrValidation, "product id is required")
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	p, err := a.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return a.failErr(c, op, fmt.Errorf("product %s: %w", req.ProductID, err))
	}
	return respond(c, echo.Map{"product": adminView(p)})
}

// handleAddProduct creates a catalog row, ingesting the image payload
// first. If the insert fails after a successful ingestion the stored
// file is removed again, so no orphan ends up under uploads/.
func (a *API) handleAddProduct(c echo.Context, sess *session.Session) error {
	var req productWriteReq
	if err := c.Bind(&req); err != nil {
		return a.failWith(c, "add_product", fmt.Errorf("bind: %w", err), "invalid request body")
	}
	if msg, err := validateProductWrite(&req); err != nil {
		return a.failWith(c, "add_product", err, msg)
	}

	imageURL, err := a.ingestImage(c, &req)
	if err != nil {
		return a.failErr(c, "add_product", fmt.Errorf("ingest image: %w", err))
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	p := &model.Product{
		ProductID:   utils.NewEntityID("product"),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    imageURL,
	}
	if err := a.products.Create(ctx, p); err != nil {
		if imageURL != "" {
			_ = a.images.Remove(imageURL) // compensate: no row, no file
		}
		return a.failErr(c, "add_product", fmt.Errorf("insert product: %w", err))
	}

	_ = a.publish(ctx, queue.ActivityEvent{
		Action:     queue.ActionProductCreated,
		EntityType: "product",
		EntityID:   p.ProductID,
		ActorID:    sess.UserID,
		Detail:     p.Name,
		OccurredAt: time.Now().UTC(),
	})

	log.Info().Str("product_id", p.ProductID).Str("name", p.Name).Msg("product added")
	return respond(c, echo.Map{
		"message": "product added successfully",
		"product": echo.Map{
			"id":        p.ProductID,
			"name":      p.Name,
			"category":  p.Category,
			"price":     p.Price,
			"stock":     p.Stock,
			"image_url": p.ImageURL,
		},
	})
}

// handleUpdateProduct rewrites a catalog row. When a new image is
// supplied it is ingested before anything is written; the old stored
// file is deleted only after the row update succeeds, so any failure
// along the way leaves the previous image intact.
func (a *API) handleUpdateProduct(c echo.Context, sess *session.Session) error {
	var req productWriteReq
	if err := c.Bind(&req); err != nil {
		return a.failWith(c, "update_product", fmt.Errorf("bind: %w", err), "invalid request body")
	}
	if req.ProductID == "" {
		return a.failWith(c, "update_product", apperr.ErrValidation, "product id is required")
	}
	if msg, err := validateProductWrite(&req); err != nil {
		return a.failWith(c, "update_product", err, msg)
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	current, err := a.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return a.failErr(c, "update_product", fmt.Errorf("product %s: %w", req.ProductID, err))
	}

	newImage, err := a.ingestImage(c, &req)
	if err != nil {
		// Ingestion failed: the row and its old image stay untouched.
		return a.failErr(c, "update_product", fmt.Errorf("ingest replacement image: %w", err))
	}

	oldImage := current.ImageURL
	updated := *current
	updated.Name = req.Name
	updated.Category = req.Category
	updated.Price = req.Price
	updated.Stock = req.Stock
	updated.Description = req.Description
	if newImage != "" {
		updated.ImageURL = newImage
	}

	if err := a.products.Update(ctx, &updated); err != nil {
		if newImage != "" {
			_ = a.images.Remove(newImage) // compensate: row kept its old path
		}
		return a.failErr(c, "update_product", fmt.Errorf("update product %s: %w", req.ProductID, err))
	}

	if newImage != "" && oldImage != "" && oldImage != newImage {
		if err := a.images.Remove(oldImage); err != nil {
			log.Warn().Err(err).Str("image", oldImage).Msg("old image cleanup failed")
		}
	}

	_ = a.publish(ctx, queue.ActivityEvent{
		Action:     queue.ActionProductUpdated,
		EntityType: "product",
		EntityID:   updated.ProductID,
		ActorID:    sess.UserID,
		Detail:     updated.Name,
		OccurredAt: time.Now().UTC(),
	})

	log.Info().Str("product_id", updated.ProductID).Msg("product updated")
	return respond(c, echo.Map{
		"message": "product updated successfully",
		"product": echo.Map{
			"id":          updated.ProductID,
			"name":        updated.Name,
			"category":    updated.Category,
			"price":       updated.Price,
			"stock":       updated.Stock,
			"description": updated.Description,
			"image_url":   updated.ImageURL,
		},
	})
}

// handleDeleteProduct removes the row first and then best-effort
// deletes the stored image; the database is the source of truth for
// product existence, so a failed file removal does not fail the
// operation.
func (a *API) handleDeleteProduct(c echo.Context, sess *session.Session) error {
	var req productIDReq
	if err := c.Bind(&req); err != nil {
		return a.failWith(c, "delete_product", fmt.Errorf("bind: %w", err), "invalid request body")
	}
	if req.ProductID == "" {
		return a.failWith(c, "delete_product", apperr.ErrValidation, "product id is required")
	}

	ctx, cancel := opCtx(c)
	defer cancel()

	p, err := a.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return a.failErr(c, "delete_product", fmt.Errorf("product %s: %w", req.ProductID, err))
	}
	if err := a.products.Delete(ctx, req.ProductID); err != nil {
		return a.failErr(c, "delete_product", fmt.Errorf("delete product %s: %w", req.ProductID, err))
	}

	if upload.Managed(p.ImageURL) {
		if err := a.images.Remove(p.ImageURL); err != nil {
			log.Warn().Err(err).Str("image", p.ImageURL).Msg("image cleanup failed")
		}
	}

	_ = a.publish(ctx, queue.ActivityEvent{
		Action:     queue.ActionProductDeleted,
		EntityType: "product",
		EntityID:   p.ProductID,
		ActorID:    sess.UserID,
		Detail:     p.Name,
		OccurredAt: time.Now().UTC(),
	})

	log.Info().Str("product_id", p.ProductID).Str("name", p.Name).Msg("product deleted")
	return respond(c, echo.Map{"message": "product deleted successfully"})
}

// ingestImage runs whichever payload shape the request carries through
// the pipeline: the multipart `image` file field wins, then an inline
// data URI. Returns "" when no image was supplied.
func (a *API) ingestImage(c echo.Context, req *productWriteReq) (string, error) {
	if fh := formFile(c); fh != nil {
		return a.images.SaveUpload(fh)
	}
	if req.Image != "" {
		return a.images.SaveDataURI(req.Image)
	}
	return "", nil
}

func validateProductWrite(req *productWriteReq) (msg string, err error) {
	if req.Name == "" || req.Category == "" || req.Price <= 0 {
		return "product information is incomplete", fmt.Errorf("name/category/price: %w", apperr.ErrValidation)
	}
	if !model.ValidCategory(req.Category) {
		return "unknown product category", fmt.Errorf("category %q: %w", req.Category, apperr.ErrValidation)
	}
	if req.Stock < 0 {
		return "stock cannot be negative", fmt.Errorf("stock %d: %w", req.Stock, apperr.ErrValidation)
	}
	return "", nil
}
