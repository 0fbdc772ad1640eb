package domain

import (
	"time"
)

// VoiceTenant binds a business phone number to a voice agent configuration.
type VoiceTenant struct {
	ID         string `json:"id" gorm:"type:uuid;primary_key"`
	TenantID   string `json:"tenant_id" gorm:"type:varchar(255);uniqueIndex:uni_voice_tenants_tenant_id;not null"`
	TenantName string `json:"tenant_name" gorm:"type:varchar(255);not null"`

	// PhoneNumber is the bound business number in E.164 form. Older rows may
	// instead carry the number under custom_config["twilio_number"].
	PhoneNumber string `json:"phone_number" gorm:"type:varchar(32);index"`

	// AgentID overrides the process-wide default voice agent when set.
	AgentID string `json:"agent_id" gorm:"type:varchar(255)"`

	Greeting      string `json:"greeting" gorm:"type:text"`
	Tone          string `json:"tone" gorm:"type:varchar(64)"`
	BusinessHours string `json:"business_hours" gorm:"type:text"`

	CustomConfig JSONB     `json:"custom_config" gorm:"type:jsonb"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
	Disabled     bool      `json:"disabled" gorm:"default:false"`
}

// TableName sets the table name for VoiceTenant
func (VoiceTenant) TableName() string {
	return "voice_tenants"
}

// BoundNumbers returns the candidate phone numbers this tenant is bound to:
// the primary column first, then the legacy custom_config fallback.
func (t *VoiceTenant) BoundNumbers() []string {
	numbers := make([]string, 0, 2)
	if t.PhoneNumber != "" {
		numbers = append(numbers, t.PhoneNumber)
	}
	if legacy := t.CustomConfig.String("twilio_number"); legacy != "" {
		numbers = append(numbers, legacy)
	}
	return numbers
}

// CreateVoiceTenantRequest represents the request to create a new voice tenant
type CreateVoiceTenantRequest struct {
	TenantID      string `json:"tenant_id" validate:"required"`
	TenantName    string `json:"tenant_name" validate:"required"`
	PhoneNumber   string `json:"phone_number" validate:"required"`
	AgentID       string `json:"agent_id,omitempty"`
	Greeting      string `json:"greeting,omitempty"`
	Tone          string `json:"tone,omitempty"`
	BusinessHours string `json:"business_hours,omitempty"`
	CustomConfig  JSONB  `json:"custom_config,omitempty"`
}

// UpdateVoiceTenantRequest represents the request to update a voice tenant
type UpdateVoiceTenantRequest struct {
	TenantName    *string `json:"tenant_name,omitempty"`
	PhoneNumber   *string `json:"phone_number,omitempty"`
	AgentID       *string `json:"agent_id,omitempty"`
	Greeting      *string `json:"greeting,omitempty"`
	Tone          *string `json:"tone,omitempty"`
	BusinessHours *string `json:"business_hours,omitempty"`
	CustomConfig  *JSONB  `json:"custom_config,omitempty"`
	Disabled      *bool   `json:"disabled,omitempty"`
}
