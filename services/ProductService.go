package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"storefront/entities"
	"storefront/models"
	"storefront/repository"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

const (
	DefaultPageLimit = 12
	MaxPageLimit     = 100
	relatedLimit     = 4
)

type ProductService struct {
	pr    repository.ProductRepository
	cr    repository.CategoryRepository
	cache repository.CacheRepository
}

// NewProductService wires the catalog. cache may be nil, in which case every
// listing goes to the database.
func NewProductService(pRepo repository.ProductRepository, catRepo repository.CategoryRepository, cache repository.CacheRepository) ProductService {
	return ProductService{
		pr:    pRepo,
		cr:    catRepo,
		cache: cache,
	}
}

func boolKey(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func cacheKey(f models.ProductFilter) string {
	return strings.Join([]string{
		f.Category, strings.ToLower(strings.TrimSpace(f.Query)),
		f.MinPrice.Decimal.String() + strconv.FormatBool(f.MinPrice.Valid),
		f.MaxPrice.Decimal.String() + strconv.FormatBool(f.MaxPrice.Valid),
		boolKey(f.IsNew), boolKey(f.Featured), strconv.FormatBool(f.InStock),
		f.Sort, strconv.Itoa(f.Page), strconv.Itoa(f.Limit),
	}, "|")
}

func (ps *ProductService) ListProducts(ctx context.Context, f models.ProductFilter) (page entities.ProductPage, err error) {
	f.Page, f.Limit = pageBounds(f.Page, f.Limit, DefaultPageLimit, MaxPageLimit)
	if f.Sort == "" {
		f.Sort = "newest"
	}
	if f.MinPrice.Valid && f.MaxPrice.Valid && f.MinPrice.Decimal.GreaterThan(f.MaxPrice.Decimal) {
		err = models.Errorf(models.ErrBadRequest, "minPrice must not exceed maxPrice")
		return
	}

	var versionedKey string
	if ps.cache != nil {
		cached, vk, found, e := ps.cache.GetProductPage(ctx, cacheKey(f))
		if e == nil && found {
			return cached, nil
		}
		versionedKey = vk
	}

	prods, total, e := ps.pr.ListProducts(ctx, f)
	if e != nil {
		err = e
		return
	}
	page = entities.ProductPage{
		Items:      toProducts(prods),
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: entities.TotalPages(total, f.Limit),
	}
	if versionedKey != "" {
		// a failed cache write only costs the next request a query
		_ = ps.cache.SetProductPage(ctx, versionedKey, page)
	}
	return
}

func (ps *ProductService) getProduct(ctx context.Context, idOrSlug string) (pModel models.Product_db, err error) {
	var exists bool
	if id, e := strconv.Atoi(idOrSlug); e == nil {
		pModel, exists, err = ps.pr.GetProductById(ctx, id)
	} else {
		pModel, exists, err = ps.pr.GetProductBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return
	}
	if !exists {
		err = models.Errorf(models.ErrNotFound, "product not found")
	}
	return
}

// GetProduct looks a product up by numeric id or by slug.
func (ps *ProductService) GetProduct(ctx context.Context, idOrSlug string) (pEnt entities.Product, err error) {
	pModel, err := ps.getProduct(ctx, idOrSlug)
	if err != nil {
		return
	}
	pEnt = toProduct(pModel)
	return
}

func (ps *ProductService) GetRelated(ctx context.Context, idOrSlug string) (prods []entities.Product, err error) {
	pModel, err := ps.getProduct(ctx, idOrSlug)
	if err != nil {
		return
	}
	related, e := ps.pr.GetRelatedProducts(ctx, pModel, relatedLimit)
	if e != nil {
		err = e
		return
	}
	prods = toProducts(related)
	return
}

// discountFor returns the explicit discount or, failing that, the percentage
// the current price is below the old price.
func discountFor(req models.ProductRequest) int {
	if req.Discount != nil {
		return *req.Discount
	}
	if !req.OldPrice.Valid || !req.OldPrice.Decimal.GreaterThan(req.Price) {
		return 0
	}
	old := req.OldPrice.Decimal
	return int(old.Sub(req.Price).Mul(decimal.NewFromInt(100)).Div(old).Round(0).IntPart())
}

func (ps *ProductService) uniqueSlug(ctx context.Context, base string, exceptId int) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		ex, err := ps.pr.SlugExists(ctx, candidate, exceptId)
		if err != nil {
			return "", err
		}
		if !ex {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (ps *ProductService) buildProduct(ctx context.Context, req models.ProductRequest) (pModel models.Product_db, err error) {
	if err = validate(req); err != nil {
		return
	}
	if !req.Price.IsPositive() {
		err = models.Errorf(models.ErrBadRequest, "price must be greater than zero")
		return
	}
	if req.OldPrice.Valid && !req.OldPrice.Decimal.IsPositive() {
		err = models.Errorf(models.ErrBadRequest, "oldPrice must be greater than zero")
		return
	}
	pModel = models.Product_db{
		Id:          req.Id,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		OldPrice:    req.OldPrice,
		Discount:    discountFor(req),
		Stock:       req.Stock,
		Images:      req.Images,
		IsNew:       req.IsNew,
		IsFeatured:  req.IsFeatured,
	}
	if req.CategoryId != nil {
		ex, e := ps.cr.CategoryExist(ctx, *req.CategoryId)
		if e != nil {
			err = e
			return
		}
		if !ex {
			err = models.Errorf(models.ErrBadRequest, "category %d does not exist", *req.CategoryId)
			return
		}
		pModel.CategoryId = sql.NullInt64{Int64: int64(*req.CategoryId), Valid: true}
	}
	base := slug.Make(req.Slug)
	if base == "" {
		base = slug.Make(req.Name)
	}
	if base == "" {
		base = "product"
	}
	pModel.Slug, err = ps.uniqueSlug(ctx, base, req.Id)
	return
}

func (ps *ProductService) invalidate(ctx context.Context) {
	if ps.cache == nil {
		return
	}
	if err := ps.cache.InvalidateProducts(ctx); err != nil {
		log.Printf("invalidate: %v", err)
	}
}

func (ps *ProductService) CreateProduct(ctx context.Context, req models.ProductRequest) (pEnt entities.Product, err error) {
	req.Id = 0
	pModel, err := ps.buildProduct(ctx, req)
	if err != nil {
		return
	}
	newId, err := ps.pr.CreateProduct(ctx, pModel)
	if err != nil {
		return
	}
	ps.invalidate(ctx)
	pEnt, err = ps.GetProduct(ctx, strconv.Itoa(newId))
	return
}

func (ps *ProductService) UpdateProduct(ctx context.Context, req models.ProductRequest) (pEnt entities.Product, err error) {
	pModel, err := ps.buildProduct(ctx, req)
	if err != nil {
		return
	}
	if err = ps.pr.UpdateProduct(ctx, pModel); err != nil {
		return
	}
	ps.invalidate(ctx)
	pEnt, err = ps.GetProduct(ctx, strconv.Itoa(req.Id))
	return
}

func (ps *ProductService) DeleteProduct(ctx context.Context, id int) (err error) {
	if err = ps.pr.DeleteProduct(ctx, id); err != nil {
		return
	}
	ps.invalidate(ctx)
	return
}

// ExportProducts writes the whole catalog as an xlsx workbook.
func (ps *ProductService) ExportProducts(ctx context.Context, w io.Writer) (err error) {
	prods, err := ps.pr.GetAllProducts(ctx)
	if err != nil {
		return
	}

	file := xlsx.NewFile()
	sheet, e := file.AddSheet("Products")
	if e != nil {
		log.Printf("ExportProducts[1]: %v", e)
		err = models.ErrServerError
		return
	}

	headers := []string{
		"ID", "Name", "Slug", "Category", "Price", "OldPrice", "Discount",
		"Stock", "Rating", "Reviews", "New", "Featured", "Images", "CreatedAt", "UpdatedAt",
	}
	headerRow := sheet.AddRow()
	for _, h := range headers {
		headerRow.AddCell().SetValue(h)
	}

	for _, p := range prods {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.Id)
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Slug)
		row.AddCell().SetValue(p.CategorySlug.String)
		row.AddCell().SetValue(p.Price.InexactFloat64())
		if p.OldPrice.Valid {
			row.AddCell().SetValue(p.OldPrice.Decimal.InexactFloat64())
		} else {
			row.AddCell().SetValue("")
		}
		row.AddCell().SetValue(p.Discount)
		row.AddCell().SetValue(p.Stock)
		row.AddCell().SetValue(p.Rating)
		row.AddCell().SetValue(p.ReviewCount)
		row.AddCell().SetValue(p.IsNew)
		row.AddCell().SetValue(p.IsFeatured)
		row.AddCell().SetValue(strings.Join(p.Images, ","))
		row.AddCell().SetValue(p.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(p.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	if err = file.Write(w); err != nil {
		log.Printf("ExportProducts[2]: %v", err)
		err = models.ErrServerError
	}
	return
}
