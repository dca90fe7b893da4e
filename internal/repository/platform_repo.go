package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

// PlatformRepository persists LMS platform registrations.
type PlatformRepository interface {
	Upsert(ctx context.Context, platform *models.Platform) error
	FindByIssuer(ctx context.Context, issuer, clientID string) (models.Platform, error)
}

type platformRepository struct {
	db *gorm.DB
}

// NewPlatformRepository instantiates the repository.
func NewPlatformRepository(db *gorm.DB) PlatformRepository {
	return &platformRepository{db: db}
}

func (r *platformRepository) Upsert(ctx context.Context, platform *models.Platform) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}, {Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"authentication_endpoint",
			"access_token_endpoint",
			"auth_method",
			"auth_key",
			"updated_at",
		}),
	}).Create(platform).Error
}

// FindByIssuer returns the registration for an issuer. An empty client id matches the oldest registration.
func (r *platformRepository) FindByIssuer(ctx context.Context, issuer, clientID string) (models.Platform, error) {
	query := r.db.WithContext(ctx).Where("url = ?", issuer)
	if clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}

	var platform models.Platform
	if err := query.Order("id ASC").First(&platform).Error; err != nil {
		return models.Platform{}, err
	}

	return platform, nil
}
