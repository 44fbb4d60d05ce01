package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"staybook/internal/domain"
)

type NewListing struct {
	HostID        int64
	CategoryID    *int64
	Title         string
	Description   string
	Location      string
	PricePerNight decimal.Decimal
	MaxGuests     int
	Bedrooms      int
	Bathrooms     int
	Amenities     string
}

// ListingService holds the host-side catalog writes.
type ListingService struct {
	repo  domain.CatalogRepository
	cache domain.Cache
	now   func() time.Time
}

func NewListingService(r domain.CatalogRepository, c domain.Cache) *ListingService {
	return &ListingService{repo: r, cache: c, now: time.Now}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func (s *ListingService) CreateCategory(ctx context.Context, name, description string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.Invalid("name is required")
	}
	now := s.now().UTC()
	c := domain.Category{
		Name:        name,
		Slug:        slugify(name),
		Description: strings.TrimSpace(description),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertCategory(ctx, &c); err != nil {
		return domain.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *ListingService) CreateListing(ctx context.Context, in NewListing) (domain.Listing, error) {
	switch {
	case in.HostID <= 0:
		return domain.Listing{}, domain.Invalid("host is required")
	case strings.TrimSpace(in.Title) == "":
		return domain.Listing{}, domain.Invalid("title is required")
	case strings.TrimSpace(in.Location) == "":
		return domain.Listing{}, domain.Invalid("location is required")
	case !in.PricePerNight.IsPositive():
		return domain.Listing{}, domain.Invalid("price_per_night must be positive")
	case in.MaxGuests < 1:
		return domain.Listing{}, domain.Invalid("max_guests must be at least 1")
	case in.Bedrooms < 0 || in.Bathrooms < 0:
		return domain.Listing{}, domain.Invalid("bedrooms and bathrooms must not be negative")
	}
	if in.CategoryID != nil {
		c, err := s.repo.FindCategory(ctx, *in.CategoryID)
		if err != nil {
			return domain.Listing{}, domain.Invalid("unknown category %d", *in.CategoryID)
		}
		if !c.Active {
			return domain.Listing{}, domain.Invalid("category %d is inactive", c.ID)
		}
	}

	now := s.now().UTC()
	l := domain.Listing{
		HostID:        in.HostID,
		CategoryID:    in.CategoryID,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		Location:      strings.TrimSpace(in.Location),
		PricePerNight: in.PricePerNight.Round(2),
		MaxGuests:     in.MaxGuests,
		Bedrooms:      in.Bedrooms,
		Bathrooms:     in.Bathrooms,
		Amenities:     strings.TrimSpace(in.Amenities),
		Available:     true,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.InsertListing(ctx, &l); err != nil {
		return domain.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	if s.cache != nil {
		invalidateListing(ctx, s.cache, l.ID)
	}
	log.Info().Int64("listing", l.ID).Int64("host", l.HostID).Msg("listing created")
	return l, nil
}

// AddImage attaches an image to a listing owned by hostID.
func (s *ListingService) AddImage(ctx context.Context, hostID int64, img domain.ListingImage) (domain.ListingImage, error) {
	if strings.TrimSpace(img.URL) == "" {
		return domain.ListingImage{}, domain.Invalid("image is required")
	}
	l, err := s.repo.FindListing(ctx, img.ListingID)
	if err != nil {
		return domain.ListingImage{}, fmt.Errorf("listing %d: %w", img.ListingID, err)
	}
	if !l.Active {
		return domain.ListingImage{}, fmt.Errorf("listing %d: %w", l.ID, domain.ErrNotFound)
	}
	if l.HostID != hostID {
		return domain.ListingImage{}, fmt.Errorf("listing %d: %w", l.ID, domain.ErrForbidden)
	}
	img.URL = strings.TrimSpace(img.URL)
	img.Caption = strings.TrimSpace(img.Caption)
	img.CreatedAt = s.now().UTC()
	if err := s.repo.InsertImage(ctx, &img); err != nil {
		return domain.ListingImage{}, fmt.Errorf("insert image: %w", err)
	}
	return img, nil
}
