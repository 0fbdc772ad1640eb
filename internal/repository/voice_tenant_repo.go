package repository

import (
	"context"
	"fmt"

	"github.com/cpetrula/tonris-sub001/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormVoiceTenantRepository implements VoiceTenantRepository using GORM
type GormVoiceTenantRepository struct {
	db *gorm.DB
}

// NewGormVoiceTenantRepository creates a new GORM voice tenant repository
func NewGormVoiceTenantRepository(db *gorm.DB) *GormVoiceTenantRepository {
	return &GormVoiceTenantRepository{db: db}
}

// Create creates a new voice tenant
func (r *GormVoiceTenantRepository) Create(ctx context.Context, req *domain.CreateVoiceTenantRequest) (*domain.VoiceTenant, error) {
	// IDs are generated app-side so the schema does not depend on pgcrypto.
	tenant := &domain.VoiceTenant{
		ID:            uuid.NewString(),
		TenantID:      req.TenantID,
		TenantName:    req.TenantName,
		PhoneNumber:   req.PhoneNumber,
		AgentID:       req.AgentID,
		Greeting:      req.Greeting,
		Tone:          req.Tone,
		BusinessHours: req.BusinessHours,
		CustomConfig:  req.CustomConfig,
	}

	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create voice tenant: %w", err)
	}

	return tenant, nil
}

// GetByID retrieves a voice tenant by ID
func (r *GormVoiceTenantRepository) GetByID(ctx context.Context, id string) (*domain.VoiceTenant, error) {
	var tenant domain.VoiceTenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("voice tenant not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get voice tenant: %w", err)
	}

	return &tenant, nil
}

// GetByTenantID retrieves a voice tenant by tenant ID
func (r *GormVoiceTenantRepository) GetByTenantID(ctx context.Context, tenantID string) (*domain.VoiceTenant, error) {
	var tenant domain.VoiceTenant
	if err := r.db.WithContext(ctx).First(&tenant, "tenant_id = ?", tenantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("voice tenant not found with tenant ID: %s", tenantID)
		}
		return nil, fmt.Errorf("failed to get voice tenant by tenant ID: %w", err)
	}

	return &tenant, nil
}

// GetActive retrieves all enabled voice tenants
func (r *GormVoiceTenantRepository) GetActive(ctx context.Context) ([]*domain.VoiceTenant, error) {
	var tenants []*domain.VoiceTenant
	if err := r.db.WithContext(ctx).Where("disabled = ?", false).Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to get active voice tenants: %w", err)
	}

	return tenants, nil
}

// GetAll retrieves all voice tenants
func (r *GormVoiceTenantRepository) GetAll(ctx context.Context, includeDisabled bool) ([]*domain.VoiceTenant, error) {
	var tenants []*domain.VoiceTenant
	query := r.db.WithContext(ctx)

	if !includeDisabled {
		query = query.Where("disabled = ?", false)
	}

	if err := query.Order("created_at DESC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to get voice tenants: %w", err)
	}

	return tenants, nil
}

// Update updates a voice tenant
func (r *GormVoiceTenantRepository) Update(ctx context.Context, id string, req *domain.UpdateVoiceTenantRequest) (*domain.VoiceTenant, error) {
	var tenant domain.VoiceTenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("voice tenant not found: %s", id)
		}
		return nil, fmt.Errorf("failed to find voice tenant: %w", err)
	}

	// Build update map
	updates := make(map[string]interface{})

	if req.TenantName != nil {
		updates["tenant_name"] = *req.TenantName
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.AgentID != nil {
		updates["agent_id"] = *req.AgentID
	}
	if req.Greeting != nil {
		updates["greeting"] = *req.Greeting
	}
	if req.Tone != nil {
		updates["tone"] = *req.Tone
	}
	if req.BusinessHours != nil {
		updates["business_hours"] = *req.BusinessHours
	}
	if req.CustomConfig != nil {
		updates["custom_config"] = *req.CustomConfig
	}
	if req.Disabled != nil {
		updates["disabled"] = *req.Disabled
	}

	if len(updates) == 0 {
		return &tenant, nil // No changes
	}

	if err := r.db.WithContext(ctx).Model(&tenant).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update voice tenant: %w", err)
	}

	return &tenant, nil
}

// Delete soft deletes a voice tenant
func (r *GormVoiceTenantRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&domain.VoiceTenant{}).Where("id = ?", id).Update("disabled", true)
	if result.Error != nil {
		return fmt.Errorf("failed to delete voice tenant: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("voice tenant not found: %s", id)
	}

	return nil
}

// ExistsByTenantID checks if a voice tenant exists by tenant ID
func (r *GormVoiceTenantRepository) ExistsByTenantID(ctx context.Context, tenantID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.VoiceTenant{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check if voice tenant exists by tenant ID: %w", err)
	}

	return count > 0, nil
}
