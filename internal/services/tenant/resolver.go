package tenant

import (
	"context"
	"strings"

	"github.com/cpetrula/tonris-sub001/internal/domain"
	"github.com/cpetrula/tonris-sub001/pkg/logger"
	"go.uber.org/zap"
)

// Store is the slice of the tenant repository the resolver needs.
type Store interface {
	GetActive(ctx context.Context) ([]*domain.VoiceTenant, error)
}

// PhoneResolver maps a dialed phone number to the tenant bound to it.
type PhoneResolver struct {
	tenants Store
}

// NewPhoneResolver creates a resolver backed by the given tenant store.
func NewPhoneResolver(tenants Store) *PhoneResolver {
	return &PhoneResolver{tenants: tenants}
}

// Resolve returns the active tenant whose bound number matches the given one,
// comparing the primary phone_number column first and the legacy
// custom_config number as a fallback. Lookup failures are logged and yield
// "not found" so callers can produce a safe fallback response.
//
// This is a linear scan over active tenants. Fine at current tenant counts;
// an indexed lookup would lose the legacy fallback matching.
func (r *PhoneResolver) Resolve(ctx context.Context, phoneNumber string) (*domain.VoiceTenant, bool) {
	normalized := NormalizeNumber(phoneNumber)
	if normalized == "" {
		return nil, false
	}

	tenants, err := r.tenants.GetActive(ctx)
	if err != nil {
		logger.Base().Error("tenant lookup by phone number failed",
			zap.String("phone_number", phoneNumber),
			zap.Error(err))
		return nil, false
	}

	for _, t := range tenants {
		for _, bound := range t.BoundNumbers() {
			if NormalizeNumber(bound) == normalized {
				return t, true
			}
		}
	}

	logger.Base().Info("no tenant bound to phone number",
		zap.String("phone_number", normalized))
	return nil, false
}

// NormalizeNumber reduces arbitrary phone number formatting to digits plus a
// leading plus sign.
func NormalizeNumber(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
