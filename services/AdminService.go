package services

import (
	"context"

	"storefront/entities"
	"storefront/repository"

	"golang.org/x/sync/errgroup"
)

type AdminService struct {
	pr repository.ProductRepository
	cr repository.CategoryRepository
	ur repository.UserRepository
	or repository.OrderRepository
}

func NewAdminService(productRepo repository.ProductRepository, catRepo repository.CategoryRepository,
	userRepo repository.UserRepository, orderRepo repository.OrderRepository) AdminService {
	return AdminService{
		pr: productRepo,
		cr: catRepo,
		ur: userRepo,
		or: orderRepo,
	}
}

// Stats gathers the dashboard counters. Revenue excludes cancelled orders.
func (as *AdminService) Stats(ctx context.Context) (stats entities.Stats, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (e error) {
		stats.Products, e = as.pr.CountProducts(gctx)
		return
	})
	g.Go(func() (e error) {
		stats.Categories, e = as.cr.CountCategories(gctx)
		return
	})
	g.Go(func() (e error) {
		stats.Users, e = as.ur.CountUsers(gctx)
		return
	})
	g.Go(func() (e error) {
		stats.Orders, stats.PendingOrders, e = as.or.CountOrders(gctx)
		return
	})
	g.Go(func() (e error) {
		stats.Revenue, e = as.or.Revenue(gctx)
		return
	})
	err = g.Wait()
	return
}
