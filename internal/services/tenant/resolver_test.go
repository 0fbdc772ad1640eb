package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/cpetrula/tonris-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	tenants []*domain.VoiceTenant
	err     error
}

func (f *fakeStore) GetActive(ctx context.Context) ([]*domain.VoiceTenant, error) {
	return f.tenants, f.err
}

func TestNormalizeNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+15550001234", "+15550001234"},
		{"+1 (555) 000-1234", "+15550001234"},
		{"555.000.1234", "5550001234"},
		{"  +44 20 7946 0958 ", "+442079460958"},
		{"15+550001234", "15550001234"}, // plus only counts in first position
		{"", ""},
		{"ext", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeNumber(c.in), "input %q", c.in)
	}
}

func TestResolveByPrimaryNumber(t *testing.T) {
	store := &fakeStore{tenants: []*domain.VoiceTenant{
		{TenantID: "acme", TenantName: "Acme", PhoneNumber: "+15550001111"},
		{TenantID: "globex", TenantName: "Globex", PhoneNumber: "+15550002222"},
	}}
	r := NewPhoneResolver(store)

	got, found := r.Resolve(context.Background(), "+1 (555) 000-2222")
	require.True(t, found)
	assert.Equal(t, "globex", got.TenantID)
}

func TestResolveByLegacyConfigNumber(t *testing.T) {
	store := &fakeStore{tenants: []*domain.VoiceTenant{
		{
			TenantID:     "acme",
			PhoneNumber:  "+15550001111",
			CustomConfig: domain.JSONB{"twilio_number": "+15550009999"},
		},
	}}
	r := NewPhoneResolver(store)

	got, found := r.Resolve(context.Background(), "+15550009999")
	require.True(t, found)
	assert.Equal(t, "acme", got.TenantID)
}

func TestResolveUnboundNumber(t *testing.T) {
	store := &fakeStore{tenants: []*domain.VoiceTenant{
		{TenantID: "acme", PhoneNumber: "+15550001111"},
	}}
	r := NewPhoneResolver(store)

	got, found := r.Resolve(context.Background(), "+15559990000")
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestResolveEmptyNumber(t *testing.T) {
	r := NewPhoneResolver(&fakeStore{})

	_, found := r.Resolve(context.Background(), "")
	assert.False(t, found)

	_, found = r.Resolve(context.Background(), "no digits here")
	assert.False(t, found)
}

func TestResolveStoreFailure(t *testing.T) {
	r := NewPhoneResolver(&fakeStore{err: errors.New("connection refused")})

	// Lookup failures degrade to "not found" rather than surfacing an error.
	got, found := r.Resolve(context.Background(), "+15550001111")
	assert.False(t, found)
	assert.Nil(t, got)
}
