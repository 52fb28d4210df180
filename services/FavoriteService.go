package services

import (
	"context"

	"storefront/entities"
	"storefront/models"
	"storefront/repository"
)

type FavoriteService struct {
	fr repository.FavoriteRepository
	pr repository.ProductRepository
}

func NewFavoriteService(favRepo repository.FavoriteRepository, productRepo repository.ProductRepository) FavoriteService {
	return FavoriteService{
		fr: favRepo,
		pr: productRepo,
	}
}

func (fs *FavoriteService) GetFavorites(ctx context.Context, userId int) (prods []entities.Product, err error) {
	list, err := fs.fr.GetFavorites(ctx, userId)
	if err != nil {
		return
	}
	prods = toProducts(list)
	return
}

func (fs *FavoriteService) AddFavorite(ctx context.Context, userId int, req models.FavoriteRequest) (err error) {
	if err = validate(req); err != nil {
		return
	}
	_, ex, err := fs.pr.GetProductById(ctx, req.ProductId)
	if err != nil {
		return
	}
	if !ex {
		err = models.Errorf(models.ErrNotFound, "product not found")
		return
	}
	err = fs.fr.AddFavorite(ctx, userId, req.ProductId)
	return
}

func (fs *FavoriteService) RemoveFavorite(ctx context.Context, userId int, productId int) (err error) {
	err = fs.fr.RemoveFavorite(ctx, userId, productId)
	return
}
