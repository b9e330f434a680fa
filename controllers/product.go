package controllers

import (
	"net/http"

	"go-ecommerce-delivery/services"
	"go-ecommerce-delivery/utils"
)

// ProductController handles catalog requests
type ProductController struct {
	Catalog *services.CatalogService
}

// NewProductController creates a new ProductController
func NewProductController(catalog *services.CatalogService) *ProductController {
	return &ProductController{Catalog: catalog}
}

// GetProducts lists active products: ?page=&keyword=&category=&sort=
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx, cancel := requestContext(r)
	defer cancel()

	page, err := pc.Catalog.List(ctx, services.ProductListQuery{
		Page:     q.Get("page"),
		Keyword:  q.Get("keyword"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, page)
}

// GetProductByID returns one active product with similar products
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	detail, err := pc.Catalog.Get(ctx, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, detail)
}

// GetCategories lists active categories
func (pc *ProductController) GetCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	cats, err := pc.Catalog.Categories(ctx)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cats)
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input services.ProductInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	product, err := pc.Catalog.CreateProduct(ctx, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, product)
}

// UpdateProduct replaces a product (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var input services.ProductInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	product, err := pc.Catalog.UpdateProduct(ctx, id, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, product)
}

// DeleteProduct removes a product (Admin only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Catalog.DeleteProduct(ctx, id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Product deleted successfully")
}

// UploadImages stores multipart "images" files and appends them to the product
func (pc *ProductController) UploadImages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "product")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	files, err := formFiles(r, "images")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	product, err := pc.Catalog.UploadImages(r.Context(), id, files)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, product)
}

// AdminCategories lists every category including inactive ones
func (pc *ProductController) AdminCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	cats, err := pc.Catalog.AllCategories(ctx)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cats)
}

func (pc *ProductController) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input services.CategoryInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	cat, err := pc.Catalog.CreateCategory(ctx, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, cat)
}

func (pc *ProductController) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "category")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var input services.CategoryInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	cat, err := pc.Catalog.UpdateCategory(ctx, id, input)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cat)
}

func (pc *ProductController) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "category")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Catalog.DeleteCategory(ctx, id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Category deleted successfully")
}
