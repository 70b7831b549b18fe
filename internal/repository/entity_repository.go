package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/yukikurage/rocks-tracker-api/internal/database"
	"github.com/yukikurage/rocks-tracker-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormEntityRepository is a GORM implementation of EntityRepository
type GormEntityRepository[T any] struct {
	db *gorm.DB
}

// NewEntityRepository creates a new EntityRepository for model T
func NewEntityRepository[T any](db *gorm.DB) EntityRepository[T] {
	return &GormEntityRepository[T]{db: db}
}

// List returns one page of rows matching scope, newest first
func (r *GormEntityRepository[T]) List(ctx context.Context, scope database.Scope, page utils.PaginationParams) ([]T, int64, error) {
	if scope == nil {
		scope = database.Identity
	}
	query := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(new(T)).Scopes(scope)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	items := []T{}
	if err := query().
		Order("id DESC").
		Scopes(database.Paginate(page)).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// FindByID finds a row by ID inside the organization
func (r *GormEntityRepository[T]) FindByID(ctx context.Context, organizationID, id uint64, scope database.Scope) (*T, error) {
	if scope == nil {
		scope = database.Identity
	}
	entity := new(T)
	if err := r.db.WithContext(ctx).
		Scopes(database.ForOrganization(organizationID), scope).
		Where("id = ?", id).
		First(entity).Error; err != nil {
		return nil, err
	}
	return entity, nil
}

// Create creates a row
func (r *GormEntityRepository[T]) Create(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

// CreateWithCode computes the next code for the organization and inserts the
// row in the same transaction. A concurrent insert of the same code fails on
// the (organization_id, code) unique index.
func (r *GormEntityRepository[T]) CreateWithCode(ctx context.Context, organizationID uint64, prefix string, entity *T, assign func(*T, string)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var codes []string
		if err := tx.Model(new(T)).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("organization_id = ? AND code LIKE ?", organizationID, prefix+"-%").
			Pluck("code", &codes).Error; err != nil {
			return err
		}

		assign(entity, fmt.Sprintf("%s-%d", prefix, nextCodeNumber(prefix, codes)))
		return tx.Create(entity).Error
	})
}

// Update saves a row
func (r *GormEntityRepository[T]) Update(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Save(entity).Error
}

// Delete deletes a row inside the organization
func (r *GormEntityRepository[T]) Delete(ctx context.Context, organizationID, id uint64) error {
	result := r.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", organizationID, id).
		Delete(new(T))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func nextCodeNumber(prefix string, codes []string) int {
	highest := 0
	for _, code := range codes {
		n, err := strconv.Atoi(strings.TrimPrefix(code, prefix+"-"))
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}
