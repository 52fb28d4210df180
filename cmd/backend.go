package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"storefront/handlers"
	"storefront/repository"
	"storefront/services"

	"github.com/redis/go-redis/v9"
)

const catalogCacheTTL = 60 * time.Second

// backend is the set of connections and services behind the API.
type backend struct {
	db  *sql.DB
	rdb *redis.Client
	hub *handlers.Hub

	users     services.UserService
	products  services.ProductService
	cats      services.CategoryService
	promos    services.PromoService
	orders    services.OrderService
	reviews   services.ReviewService
	favorites services.FavoriteService
	admin     services.AdminService
}

func openDB(ctx context.Context) (*sql.DB, error) {
	db, err := repository.OpenDB(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db is not working: %w", err)
	}
	log.Printf("db connected (%s)", cfg.DBDriver)
	return db, nil
}

func openBackend(ctx context.Context) (b *backend, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	db, err := openDB(ctx)
	if err != nil {
		return
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err != nil {
			rdb.Close()
			db.Close()
		}
	}()

	uR, err := repository.NewUserRepository(db)
	if err != nil {
		return
	}
	sR, err := repository.NewSessionRepository(ctx, rdb)
	if err != nil {
		err = fmt.Errorf("redis is not working: %w", err)
		return
	}
	log.Printf("redis connected")
	cacheR, err := repository.NewCacheRepository(ctx, rdb, catalogCacheTTL)
	if err != nil {
		return
	}
	pR, err := repository.NewProductRepository(db)
	if err != nil {
		return
	}
	cR, err := repository.NewCategoryRepository(db)
	if err != nil {
		return
	}
	oR, err := repository.NewOrderRepository(db)
	if err != nil {
		return
	}
	promoR, err := repository.NewPromoRepository(db)
	if err != nil {
		return
	}
	rR, err := repository.NewReviewRepository(db)
	if err != nil {
		return
	}
	fR, err := repository.NewFavoriteRepository(db)
	if err != nil {
		return
	}

	hub := handlers.NewHub()
	promos := services.NewPromoService(promoR)
	b = &backend{
		db:        db,
		rdb:       rdb,
		hub:       hub,
		users:     services.NewUserService(uR, sR, services.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL), cfg.RefreshTokenTTL),
		products:  services.NewProductService(pR, cR, cacheR),
		cats:      services.NewCategoryService(cR, cacheR),
		promos:    promos,
		orders:    services.NewOrderService(oR, pR, promos, cacheR, cfg.ShippingFee, hub),
		reviews:   services.NewReviewService(rR, pR, cacheR),
		favorites: services.NewFavoriteService(fR, pR),
		admin:     services.NewAdminService(pR, cR, uR, oR),
	}
	return
}

func (b *backend) seeder() services.SeedService {
	return services.NewSeedService(b.users, b.cats, b.products, b.promos)
}

func (b *backend) handler() *handlers.Handler {
	return handlers.NewHandler(handlers.HandlerParams{
		UsrService:   b.users,
		PrdService:   b.products,
		CatsService:  b.cats,
		PromoService: b.promos,
		OrdService:   b.orders,
		RevService:   b.reviews,
		FavService:   b.favorites,
		AdmService:   b.admin,
		Feed:         b.hub,
		HealthChecks: map[string]handlers.HealthCheck{
			"db":    b.db.PingContext,
			"redis": func(ctx context.Context) error { return b.rdb.Ping(ctx).Err() },
		},
		AuthRate:  cfg.AuthRatePerSec,
		AuthBurst: cfg.AuthRateBurst,
	})
}

func (b *backend) Close() {
	b.hub.Close()
	if err := b.rdb.Close(); err != nil {
		log.Printf("close redis: %v", err)
	}
	if err := b.db.Close(); err != nil {
		log.Printf("close db: %v", err)
	}
}
