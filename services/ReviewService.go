package services

import (
	"context"
	"log"
	"strings"

	"storefront/entities"
	"storefront/models"
	"storefront/repository"
)

type ReviewService struct {
	rr    repository.ReviewRepository
	pr    repository.ProductRepository
	cache repository.CacheRepository
}

func NewReviewService(reviewRepo repository.ReviewRepository, productRepo repository.ProductRepository, cache repository.CacheRepository) ReviewService {
	return ReviewService{
		rr:    reviewRepo,
		pr:    productRepo,
		cache: cache,
	}
}

func (rs *ReviewService) productExists(ctx context.Context, productId int) error {
	_, ex, err := rs.pr.GetProductById(ctx, productId)
	if err != nil {
		return err
	}
	if !ex {
		return models.Errorf(models.ErrNotFound, "product not found")
	}
	return nil
}

func (rs *ReviewService) ListReviews(ctx context.Context, productId, page, limit int) (res entities.ReviewPage, err error) {
	if productId < 1 {
		err = models.Errorf(models.ErrBadRequest, "productId is required")
		return
	}
	if err = rs.productExists(ctx, productId); err != nil {
		return
	}
	page, limit = pageBounds(page, limit, 10, MaxPageLimit)
	list, total, err := rs.rr.ListProductReviews(ctx, productId, limit, (page-1)*limit)
	if err != nil {
		return
	}
	res = entities.ReviewPage{
		Items:      make([]entities.Review, 0, len(list)),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: entities.TotalPages(total, limit),
	}
	for _, r := range list {
		res.Items = append(res.Items, toReview(r))
	}
	return
}

func (rs *ReviewService) CreateReview(ctx context.Context, userId int, req models.ReviewRequest) (review entities.Review, err error) {
	if err = validate(req); err != nil {
		return
	}
	if err = rs.productExists(ctx, req.ProductId); err != nil {
		return
	}
	id, err := rs.rr.CreateReview(ctx, models.Review_db{
		ProductId: req.ProductId,
		UserId:    userId,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
	})
	if err != nil {
		return
	}
	rs.invalidate(ctx)
	rModel, _, err := rs.rr.GetReviewById(ctx, id)
	if err != nil {
		return
	}
	review = toReview(rModel)
	return
}

// DeleteReview removes a review on behalf of its author or an admin.
func (rs *ReviewService) DeleteReview(ctx context.Context, userId int, role string, reviewId int) (err error) {
	rModel, ex, err := rs.rr.GetReviewById(ctx, reviewId)
	if err != nil {
		return
	}
	if !ex {
		err = models.Errorf(models.ErrNotFound, "review not found")
		return
	}
	if role != models.RoleAdmin && rModel.UserId != userId {
		err = models.Errorf(models.ErrForbidden, "you can only delete your own reviews")
		return
	}
	if err = rs.rr.DeleteReview(ctx, reviewId); err != nil {
		return
	}
	rs.invalidate(ctx)
	return
}

// ratings are part of cached product pages
func (rs *ReviewService) invalidate(ctx context.Context) {
	if rs.cache != nil {
		if err := rs.cache.InvalidateProducts(ctx); err != nil {
			log.Printf("invalidate: %v", err)
		}
	}
}
