// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kitsune-chat/Kitsune/models"
	"gorm.io/gorm"
)

// PersonaRepositoryImpl implements PersonaRepository interface
type PersonaRepositoryImpl struct {
	*BaseRepository[models.Persona, models.PersonaFilter]
}

// NewPersonaRepository creates a new persona repository
func NewPersonaRepository(db *gorm.DB) PersonaRepository {
	return &PersonaRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Persona, models.PersonaFilter](db),
	}
}

// ByUUID retrieves a persona by UUID
func (r *PersonaRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Persona, error) {
	db := r.getDB(ctx)

	var persona models.Persona
	err := db.Where("uuid = ?", uuid).Last(&persona).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find persona by UUID: %w", err)
	}

	return &persona, nil
}

// ListByCreator retrieves all personas owned by a creator
func (r *PersonaRepositoryImpl) ListByCreator(ctx context.Context, creatorID uint) ([]*models.Persona, error) {
	db := r.getDB(ctx)

	var personas []*models.Persona
	err := db.Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&personas).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list personas by creator: %w", err)
	}

	return personas, nil
}
