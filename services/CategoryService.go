package services

import (
	"context"
	"log"
	"strings"

	"storefront/entities"
	"storefront/models"
	"storefront/repository"

	"github.com/gosimple/slug"
)

type CategoryService struct {
	cr    repository.CategoryRepository
	cache repository.CacheRepository
}

func NewCategoryService(catRepo repository.CategoryRepository, cache repository.CacheRepository) CategoryService {
	return CategoryService{
		cr:    catRepo,
		cache: cache,
	}
}

func (cas *CategoryService) GetAllCategories(ctx context.Context) (categories []entities.Category, err error) {
	cats, err := cas.cr.GetAllCategories(ctx)
	if err != nil {
		return
	}
	categories = make([]entities.Category, 0, len(cats))
	for _, c := range cats {
		categories = append(categories, toCategory(c))
	}
	return
}

func (cas *CategoryService) GetCategory(ctx context.Context, catSlug string) (category entities.Category, err error) {
	cat, ex, err := cas.cr.GetCategoryBySlug(ctx, catSlug)
	if err != nil {
		return
	}
	if !ex {
		err = models.Errorf(models.ErrNotFound, "category not found")
		return
	}
	category = toCategory(cat)
	return
}

func (cas *CategoryService) buildCategory(ctx context.Context, req models.CategoryRequest) (cat models.Category_db, err error) {
	if err = validate(req); err != nil {
		return
	}
	cat = models.Category_db{
		Id:           req.Id,
		Name:         strings.TrimSpace(req.Name),
		Slug:         slug.Make(req.Slug),
		DisplayOrder: req.DisplayOrder,
	}
	if cat.Slug == "" {
		cat.Slug = slug.Make(req.Name)
	}
	if cat.Slug == "" {
		err = models.Errorf(models.ErrBadRequest, "slug is required")
		return
	}
	taken, err := cas.cr.SlugExists(ctx, cat.Slug, req.Id)
	if err != nil {
		return
	}
	if taken {
		err = models.Errorf(models.ErrNotAllowed, "category slug %q is already used", cat.Slug)
	}
	return
}

func (cas *CategoryService) CreateCategory(ctx context.Context, req models.CategoryRequest) (category entities.Category, err error) {
	req.Id = 0
	cat, err := cas.buildCategory(ctx, req)
	if err != nil {
		return
	}
	cat.Id, err = cas.cr.CreateCategory(ctx, cat)
	if err != nil {
		return
	}
	category = toCategory(cat)
	return
}

func (cas *CategoryService) UpdateCategory(ctx context.Context, req models.CategoryRequest) (category entities.Category, err error) {
	cat, err := cas.buildCategory(ctx, req)
	if err != nil {
		return
	}
	if err = cas.cr.UpdateCategory(ctx, cat); err != nil {
		return
	}
	// product listings embed the category name and slug
	if cas.cache != nil {
		if e := cas.cache.InvalidateProducts(ctx); e != nil {
			log.Printf("UpdateCategory: %v", e)
		}
	}
	cat, _, err = cas.cr.GetCategoryById(ctx, cat.Id)
	category = toCategory(cat)
	return
}

func (cas *CategoryService) DeleteCategory(ctx context.Context, id int) (err error) {
	err = cas.cr.DeleteCategory(ctx, id)
	return
}
