// Package catalog is the read side of the service catalog. Orders never
// embed catalog rows; they reference them and snapshot the price at
// checkout time, so catalog edits never rewrite history.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"huduma-svc/apperr"
	"huduma-svc/cache"
	"huduma-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// cacheTTL keeps catalog reads cheap during checkout bursts. Staleness can
// only make a checkout fail NotFound, never underprice: the price used for
// an order is always the one resolved at checkout time.
const cacheTTL = 30 * time.Second

type Store struct {
	db     *sql.DB
	rdb    *redis.Client // optional; nil disables caching
	logger *zap.Logger
}

func NewStore(db *sql.DB, rdb *redis.Client, logger *zap.Logger) *Store {
	return &Store{db: db, rdb: rdb, logger: logger}
}

// GetService returns the active service with the given id, or NotFound if it
// is absent, soft-deleted or deactivated.
func (s *Store) GetService(ctx context.Context, id int) (*models.Service, error) {
	if s.rdb != nil {
		if data, err := cache.GetService(ctx, s.rdb, id); err == nil {
			var svc models.Service
			if err := json.Unmarshal(data, &svc); err == nil {
				return &svc, nil
			}
		}
	}

	var svc models.Service
	err := s.db.QueryRowContext(ctx,
		"SELECT id, category, name, price, currency, description, is_active FROM services WHERE id = $1 AND is_active = TRUE AND deleted_at IS NULL",
		id,
	).Scan(&svc.ID, &svc.Category, &svc.Name, &svc.Price, &svc.Currency, &svc.Description, &svc.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("service %d not found", id)
		}
		return nil, err
	}

	if s.rdb != nil {
		if err := cache.SetService(ctx, s.rdb, id, &svc, cacheTTL); err != nil {
			s.logger.Warn("Failed to cache service", zap.Int("service_id", id), zap.Error(err))
		}
	}

	return &svc, nil
}

// ListByCategory returns one page of active services in a category, ordered
// by name, plus the total count for pagination.
func (s *Store) ListByCategory(ctx context.Context, category string, page, perPage int) ([]models.Service, int, error) {
	if page < 1 || perPage < 1 {
		return nil, 0, apperr.InvalidArgument("invalid pagination parameters")
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM services WHERE category = $1 AND is_active = TRUE AND deleted_at IS NULL",
		category,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, category, name, price, currency, description, is_active FROM services WHERE category = $1 AND is_active = TRUE AND deleted_at IS NULL ORDER BY name ASC LIMIT $2 OFFSET $3",
		category, perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	services := []models.Service{}
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(&svc.ID, &svc.Category, &svc.Name, &svc.Price, &svc.Currency, &svc.Description, &svc.IsActive); err != nil {
			return nil, 0, err
		}
		services = append(services, svc)
	}
	return services, total, rows.Err()
}
