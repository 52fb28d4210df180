package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"storefront/entities"
	"storefront/models"

	"github.com/redis/go-redis/v9"
)

// CacheRepository keeps rendered product pages in redis. Keys carry a catalog
// version, so bumping the version drops every cached page at once.
// GetProductPage returns the versioned key current at lookup time; a page
// built after a miss must be stored under that key, so a write that bumps the
// version in between leaves it unreachable instead of stale.
type CacheRepository interface {
	SetProductPage(ctx context.Context, versionedKey string, page entities.ProductPage) (err error)
	GetProductPage(ctx context.Context, key string) (page entities.ProductPage, versionedKey string, found bool, err error)
	InvalidateProducts(ctx context.Context) (err error)
}

type CacheRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

const catalogVersionKey = "catalog:version"

func NewCacheRepository(ctx context.Context, redis_conn *redis.Client, ttl time.Duration) (CacheRepository, error) {
	if redis_conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	err := redis_conn.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}
	return &CacheRepo{
		rdb: redis_conn,
		ttl: ttl,
	}, nil
}

func (c *CacheRepo) pageKey(ctx context.Context, key string) (string, error) {
	ver, err := c.rdb.Get(ctx, catalogVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return "catalog:v" + strconv.FormatInt(ver, 10) + ":" + key, nil
}

func (c *CacheRepo) SetProductPage(ctx context.Context, versionedKey string, page entities.ProductPage) (err error) {
	jsonData, err := json.Marshal(page)
	if err != nil {
		log.Printf("SetProductPage[1]: %v", err)
		err = models.ErrServerError
		return
	}
	err = c.rdb.Set(ctx, versionedKey, jsonData, c.ttl).Err()
	if err != nil {
		log.Printf("SetProductPage[2]: %v", err)
		err = models.ErrServerError
	}
	return
}

func (c *CacheRepo) GetProductPage(ctx context.Context, key string) (page entities.ProductPage, versionedKey string, found bool, err error) {
	versionedKey, e := c.pageKey(ctx, key)
	if e != nil {
		log.Printf("GetProductPage[1]: %v", e)
		err = models.ErrServerError
		return
	}
	val, e := c.rdb.Get(ctx, versionedKey).Bytes()
	if e != nil {
		if e == redis.Nil {
			return
		}
		log.Printf("GetProductPage[2]: %v", e)
		err = models.ErrServerError
		return
	}
	if err = json.Unmarshal(val, &page); err != nil {
		log.Printf("GetProductPage[3]: %v", err)
		err = models.ErrServerError
		return
	}
	found = true
	return
}

func (c *CacheRepo) InvalidateProducts(ctx context.Context) (err error) {
	if err = c.rdb.Incr(ctx, catalogVersionKey).Err(); err != nil {
		log.Printf("InvalidateProducts: %v", err)
		err = models.ErrServerError
	}
	return
}
