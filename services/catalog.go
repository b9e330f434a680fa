package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"go-ecommerce-delivery/logger"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/storage"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	productPageSize = 10
	similarLimit    = 3
)

// ProductListQuery holds the raw query-string values of GET /products.
type ProductListQuery struct {
	Page     string
	Keyword  string
	Category string
	Sort     string
}

// ProductPage is one page of the public listing
type ProductPage struct {
	Products []models.Product `json:"products"`
	Page     int64            `json:"page"`
	Pages    int64            `json:"pages"`
}

// ProductDetail is a product with up to three active products of the same category
type ProductDetail struct {
	Product *models.Product  `json:"product"`
	Similar []models.Product `json:"similarProducts"`
}

// ProductInput creates or replaces a product
type ProductInput struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Description   string           `json:"description"`
	Price         float64          `json:"price" validate:"gte=0"`
	OriginalPrice float64          `json:"originalPrice" validate:"gte=0"`
	OfferPrice    float64          `json:"offerPrice" validate:"gte=0"`
	Variants      []models.Variant `json:"variants" validate:"dive"`
	CountInStock  int              `json:"countInStock" validate:"gte=0"`
	Images        []string         `json:"images"`
	Category      string           `json:"category" validate:"required"`
	IsActive      *bool            `json:"isActive"`
}

// CategoryInput creates or replaces a category
type CategoryInput struct {
	Name          string               `json:"name" validate:"required,max=100"`
	IsActive      *bool                `json:"isActive"`
	Subcategories []models.Subcategory `json:"subcategories" validate:"dive"`
}

type CatalogService struct {
	products   store.Products
	categories store.Categories
	blobs      storage.BlobStorage
	now        func() time.Time
}

func parsePage(raw string) int64 {
	page, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func normalizeSort(raw string) string {
	switch raw {
	case store.SortPriceLow, store.SortPriceHigh, store.SortName:
		return raw
	}
	return store.SortNewest
}

// List returns a page of active products. An unknown category name yields an empty page.
func (s *CatalogService) List(ctx context.Context, q ProductListQuery) (*ProductPage, error) {
	page := parsePage(q.Page)
	query := store.ProductQuery{
		Keyword:    q.Keyword,
		ActiveOnly: true,
		Sort:       normalizeSort(q.Sort),
		Skip:       (page - 1) * productPageSize,
		Limit:      productPageSize,
	}

	if name := strings.TrimSpace(q.Category); name != "" {
		cat, err := s.categories.FindByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return &ProductPage{Products: []models.Product{}, Page: page, Pages: 0}, nil
		}
		if err != nil {
			return nil, storeErr(err, "")
		}
		query.CategoryID = &cat.ID
	}

	products, total, err := s.products.List(ctx, query)
	if err != nil {
		return nil, storeErr(err, "")
	}
	return &ProductPage{
		Products: products,
		Page:     page,
		Pages:    int64(math.Ceil(float64(total) / productPageSize)),
	}, nil
}

// Get returns an active product with similar products.
func (s *CatalogService) Get(ctx context.Context, id primitive.ObjectID) (*ProductDetail, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Product not found")
	}
	if !p.IsActive {
		return nil, utils.NewNotFound("Product not found")
	}
	similar, err := s.products.Similar(ctx, p.CategoryID, p.ID, similarLimit)
	if err != nil {
		return nil, storeErr(err, "")
	}
	return &ProductDetail{Product: p, Similar: similar}, nil
}

// Categories lists active categories for the storefront.
func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	cats, err := s.categories.List(ctx, true)
	return cats, storeErr(err, "")
}

// AllCategories lists every category for admins.
func (s *CatalogService) AllCategories(ctx context.Context) ([]models.Category, error) {
	cats, err := s.categories.List(ctx, false)
	return cats, storeErr(err, "")
}

func (s *CatalogService) resolveCategory(ctx context.Context, hex string) (primitive.ObjectID, error) {
	id, err := ParseID(hex, "category")
	if err != nil {
		return id, err
	}
	if _, err := s.categories.FindByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return id, utils.NewValidation("category does not exist")
		}
		return id, storeErr(err, "")
	}
	return id, nil
}

func applyProductInput(p *models.Product, in ProductInput, categoryID primitive.ObjectID) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price
	p.OriginalPrice = in.OriginalPrice
	p.OfferPrice = in.OfferPrice
	p.Variants = in.Variants
	p.CountInStock = in.CountInStock
	if in.Images != nil {
		p.Images = in.Images
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	p.CategoryID = categoryID
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	categoryID, err := s.resolveCategory(ctx, in.Category)
	if err != nil {
		return nil, err
	}
	now := s.now()
	p := &models.Product{IsActive: true, CreatedAt: now, UpdatedAt: now}
	applyProductInput(p, in, categoryID)
	if err := s.products.Create(ctx, p); err != nil {
		return nil, storeErr(err, "")
	}
	logger.FromContext(ctx).Info("product created", zap.String("product_id", p.ID.Hex()))
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id primitive.ObjectID, in ProductInput) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Product not found")
	}
	categoryID, err := s.resolveCategory(ctx, in.Category)
	if err != nil {
		return nil, err
	}
	applyProductInput(p, in, categoryID)
	p.UpdatedAt = s.now()
	if err := s.products.Save(ctx, p); err != nil {
		return nil, storeErr(err, "Product not found")
	}
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	return storeErr(s.products.Delete(ctx, id), "Product not found")
}

// UploadImages stores the files in parallel and appends their URLs to the product.
func (s *CatalogService) UploadImages(ctx context.Context, id primitive.ObjectID, files []FileUpload) (*models.Product, error) {
	if err := checkFiles(files, isImage); err != nil {
		return nil, err
	}
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Product not found")
	}
	urls, err := uploadAll(ctx, s.blobs, "products/"+id.Hex(), files)
	if err != nil {
		return nil, err
	}
	p.Images = append(p.Images, urls...)
	p.UpdatedAt = s.now()
	if err := s.products.Save(ctx, p); err != nil {
		return nil, storeErr(err, "Product not found")
	}
	return p, nil
}

func (s *CatalogService) nameTaken(ctx context.Context, name string, self primitive.ObjectID) (bool, error) {
	existing, err := s.categories.FindByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "")
	}
	return existing.ID != self, nil
}

func normalizeSubcategories(subs []models.Subcategory) []models.Subcategory {
	for i := range subs {
		if subs[i].ID.IsZero() {
			subs[i].ID = primitive.NewObjectID()
		}
		subs[i].Name = strings.TrimSpace(subs[i].Name)
	}
	return subs
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	taken, err := s.nameTaken(ctx, name, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, utils.NewConflict("Category already exists")
	}
	now := s.now()
	c := &models.Category{
		Name:          name,
		IsActive:      in.IsActive == nil || *in.IsActive,
		Subcategories: normalizeSubcategories(in.Subcategories),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, utils.NewConflict("Category already exists")
		}
		return nil, storeErr(err, "")
	}
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id primitive.ObjectID, in CategoryInput) (*models.Category, error) {
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Category not found")
	}
	name := strings.TrimSpace(in.Name)
	taken, err := s.nameTaken(ctx, name, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, utils.NewConflict("Category already exists")
	}
	c.Name = name
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if in.Subcategories != nil {
		c.Subcategories = normalizeSubcategories(in.Subcategories)
	}
	c.UpdatedAt = s.now()
	if err := s.categories.Save(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, utils.NewConflict("Category already exists")
		}
		return nil, storeErr(err, "Category not found")
	}
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id primitive.ObjectID) error {
	return storeErr(s.categories.Delete(ctx, id), "Category not found")
}
