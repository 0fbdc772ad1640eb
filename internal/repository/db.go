package repository

import (
	"context"

	"github.com/cpetrula/tonris-sub001/internal/domain"
	"gorm.io/gorm"
)

// VoiceTenantRepository defines the interface for voice tenant operations
type VoiceTenantRepository interface {
	// Create operations
	Create(ctx context.Context, req *domain.CreateVoiceTenantRequest) (*domain.VoiceTenant, error)

	// Read operations
	GetByID(ctx context.Context, id string) (*domain.VoiceTenant, error)
	GetByTenantID(ctx context.Context, tenantID string) (*domain.VoiceTenant, error)
	GetActive(ctx context.Context) ([]*domain.VoiceTenant, error)
	GetAll(ctx context.Context, includeDisabled bool) ([]*domain.VoiceTenant, error)

	// Update operations
	Update(ctx context.Context, id string, req *domain.UpdateVoiceTenantRequest) (*domain.VoiceTenant, error)

	// Delete operations (soft delete)
	Delete(ctx context.Context, id string) error

	// Utility operations
	ExistsByTenantID(ctx context.Context, tenantID string) (bool, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	VoiceTenant() VoiceTenantRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db              *gorm.DB
	voiceTenantRepo *GormVoiceTenantRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:              db,
		voiceTenantRepo: NewGormVoiceTenantRepository(db),
	}
}

// VoiceTenant returns the voice tenant repository
func (m *GormRepositoryManager) VoiceTenant() VoiceTenantRepository {
	return m.voiceTenantRepo
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
