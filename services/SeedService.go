package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"storefront/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog is the seed file layout. Money is written as strings so that no
// value passes through a float.
type Catalog struct {
	Admin *struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"admin"`
	Categories []struct {
		Name         string `yaml:"name"`
		Slug         string `yaml:"slug"`
		DisplayOrder int    `yaml:"displayOrder"`
	} `yaml:"categories"`
	Products []struct {
		Name        string   `yaml:"name"`
		Slug        string   `yaml:"slug"`
		Description string   `yaml:"description"`
		Category    string   `yaml:"category"`
		Price       string   `yaml:"price"`
		OldPrice    string   `yaml:"oldPrice"`
		Stock       int      `yaml:"stock"`
		Images      []string `yaml:"images"`
		IsNew       bool     `yaml:"isNew"`
		IsFeatured  bool     `yaml:"isFeatured"`
	} `yaml:"products"`
	PromoCodes []struct {
		Code           string     `yaml:"code"`
		Type           string     `yaml:"type"`
		Value          string     `yaml:"value"`
		MinOrderAmount string     `yaml:"minOrderAmount"`
		StartsAt       *time.Time `yaml:"startsAt"`
		ExpiresAt      *time.Time `yaml:"expiresAt"`
		MaxUses        *int       `yaml:"maxUses"`
	} `yaml:"promoCodes"`
}

type SeedResult struct {
	AdminCreated bool
	Categories   int
	Products     int
	PromoCodes   int
}

func LoadCatalog(r io.Reader) (cat Catalog, err error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err = dec.Decode(&cat); err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("decode catalog: %w", err)
		return
	}
	err = nil
	return
}

type SeedService struct {
	us  UserService
	cas CategoryService
	ps  ProductService
	prs PromoService
}

func NewSeedService(us UserService, cas CategoryService, ps ProductService, prs PromoService) SeedService {
	return SeedService{
		us:  us,
		cas: cas,
		ps:  ps,
		prs: prs,
	}
}

func optionalDecimal(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// Seed loads a catalog into an existing database. Entries whose slug or code
// already exists are left alone, so running it twice is harmless.
func (ss *SeedService) Seed(ctx context.Context, cat Catalog) (res SeedResult, err error) {
	if cat.Admin != nil {
		res.AdminCreated, err = ss.us.EnsureAdmin(ctx, cat.Admin.Email, cat.Admin.Password, cat.Admin.Name)
		if err != nil {
			return
		}
	}

	catIds := map[string]int{}
	existing, err := ss.cas.GetAllCategories(ctx)
	if err != nil {
		return
	}
	for _, c := range existing {
		catIds[c.Slug] = c.Id
	}
	for _, c := range cat.Categories {
		req := models.CategoryRequest{Name: c.Name, Slug: c.Slug, DisplayOrder: c.DisplayOrder}
		created, e := ss.cas.CreateCategory(ctx, req)
		if errors.Is(e, models.ErrNotAllowed) {
			continue
		}
		if e != nil {
			err = fmt.Errorf("category %q: %w", c.Name, e)
			return
		}
		catIds[created.Slug] = created.Id
		res.Categories++
	}

	for _, p := range cat.Products {
		if p.Slug != "" {
			if _, e := ss.ps.GetProduct(ctx, p.Slug); e == nil {
				continue
			}
		}
		req := models.ProductRequest{
			Name:        p.Name,
			Slug:        p.Slug,
			Description: p.Description,
			Stock:       p.Stock,
			Images:      p.Images,
			IsNew:       p.IsNew,
			IsFeatured:  p.IsFeatured,
		}
		if req.Price, err = decimal.NewFromString(p.Price); err != nil {
			err = fmt.Errorf("product %q: price: %w", p.Name, err)
			return
		}
		if req.OldPrice, err = optionalDecimal(p.OldPrice); err != nil {
			err = fmt.Errorf("product %q: oldPrice: %w", p.Name, err)
			return
		}
		if p.Category != "" {
			id, ok := catIds[p.Category]
			if !ok {
				err = fmt.Errorf("product %q: unknown category %q", p.Name, p.Category)
				return
			}
			req.CategoryId = &id
		}
		if _, err = ss.ps.CreateProduct(ctx, req); err != nil {
			err = fmt.Errorf("product %q: %w", p.Name, err)
			return
		}
		res.Products++
	}

	for _, pc := range cat.PromoCodes {
		req := models.PromoCodeRequest{
			Code:      pc.Code,
			Type:      pc.Type,
			StartsAt:  pc.StartsAt,
			ExpiresAt: pc.ExpiresAt,
			MaxUses:   pc.MaxUses,
		}
		if pc.Value != "" {
			if req.Value, err = decimal.NewFromString(pc.Value); err != nil {
				err = fmt.Errorf("promo %q: value: %w", pc.Code, err)
				return
			}
		}
		if req.MinOrderAmount, err = optionalDecimal(pc.MinOrderAmount); err != nil {
			err = fmt.Errorf("promo %q: minOrderAmount: %w", pc.Code, err)
			return
		}
		_, e := ss.prs.CreatePromoCode(ctx, req)
		if errors.Is(e, models.ErrNotAllowed) {
			continue
		}
		if e != nil {
			err = fmt.Errorf("promo %q: %w", pc.Code, e)
			return
		}
		res.PromoCodes++
	}
	log.Printf("seed: %d categories, %d products, %d promo codes", res.Categories, res.Products, res.PromoCodes)
	return
}
