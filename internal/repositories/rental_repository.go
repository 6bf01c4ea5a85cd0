package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clubhouse/internal/models/db_models"
)

type RentalCatalogRepository interface {
	ListItems(ctx context.Context, activeOnly bool) ([]db_models.RentalItem, error)
	FindItemById(ctx context.Context, id uuid.UUID) (*db_models.RentalItem, error)
	CreateItem(ctx context.Context, item *db_models.RentalItem) error
	ListLocations(ctx context.Context) ([]db_models.RentalLocation, error)
	FindLocationById(ctx context.Context, id uuid.UUID) (*db_models.RentalLocation, error)
	CreateLocation(ctx context.Context, location *db_models.RentalLocation) error
}

type rentalCatalogRepository struct {
	db *gorm.DB
}

func NewRentalCatalogRepository(db *gorm.DB) RentalCatalogRepository {
	return &rentalCatalogRepository{db: db}
}

func (r *rentalCatalogRepository) ListItems(ctx context.Context, activeOnly bool) ([]db_models.RentalItem, error) {
	var items []db_models.RentalItem
	q := r.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&items).Error
	return items, err
}

func (r *rentalCatalogRepository) FindItemById(ctx context.Context, id uuid.UUID) (*db_models.RentalItem, error) {
	var item db_models.RentalItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *rentalCatalogRepository) CreateItem(ctx context.Context, item *db_models.RentalItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *rentalCatalogRepository) ListLocations(ctx context.Context) ([]db_models.RentalLocation, error) {
	var locations []db_models.RentalLocation
	err := r.db.WithContext(ctx).Order("name").Find(&locations).Error
	return locations, err
}

func (r *rentalCatalogRepository) FindLocationById(ctx context.Context, id uuid.UUID) (*db_models.RentalLocation, error) {
	var location db_models.RentalLocation
	if err := r.db.WithContext(ctx).First(&location, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &location, nil
}

func (r *rentalCatalogRepository) CreateLocation(ctx context.Context, location *db_models.RentalLocation) error {
	return r.db.WithContext(ctx).Create(location).Error
}
