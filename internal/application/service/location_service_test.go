package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/sales-reports/internal/domain/apperr"
	"github.com/garyjia/sales-reports/internal/domain/entity"
)

func TestLocationService_ValidateTriple(t *testing.T) {
	svc := NewLocationService(newTestStore(), &mockLogger{})

	tests := []struct {
		name       string
		triple     [3]int64
		wantFields []string
	}{
		{name: "consistent", triple: [3]int64{10, 3, 1}},
		{name: "sibling branch", triple: [3]int64{11, 3, 1}},
		{name: "wrong subdistrict", triple: [3]int64{10, 4, 1}, wantFields: []string{"subdistrict_id"}},
		{name: "wrong city", triple: [3]int64{12, 4, 1}, wantFields: []string{"city_id"}},
		{name: "both wrong", triple: [3]int64{10, 4, 2}, wantFields: []string{"subdistrict_id", "city_id"}},
		{name: "unknown branch", triple: [3]int64{99, 3, 1}, wantFields: []string{"branch_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := svc.ValidateTriple(context.Background(), tt.triple[0], tt.triple[1], tt.triple[2])
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.triple[0], chain.BranchID)
				assert.NotEmpty(t, chain.SubdistrictName)
				assert.NotEmpty(t, chain.CityName)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			var verr *apperr.ValidationError
			require.True(t, errors.As(err, &verr))
			for _, f := range tt.wantFields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestLocationService_ResolveChain(t *testing.T) {
	svc := NewLocationService(newTestStore(), &mockLogger{})

	chain, err := svc.ResolveChain(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, entity.LocationChain{
		BranchID: 12, BranchName: "Cikini",
		SubdistrictID: 4, SubdistrictName: "Menteng",
		CityID: 2, CityName: "Jakarta Pusat",
	}, *chain)

	_, err = svc.ResolveChain(context.Background(), 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLocationService_ResolveActor(t *testing.T) {
	svc := NewLocationService(newTestStore(), &mockLogger{})
	ctx := context.Background()

	branch, err := svc.ResolveActor(ctx, entity.Actor{ID: 1, Name: "Sari", Role: entity.RoleBranchUser, BranchID: 11})
	require.NoError(t, err)
	assert.Equal(t, "Senayan", branch.BranchName)
	assert.Equal(t, int64(3), branch.SubdistrictID)
	assert.Equal(t, "Kebayoran Baru", branch.SubdistrictName)
	assert.Equal(t, "Jakarta Selatan", branch.CityName)

	admin, err := svc.ResolveActor(ctx, entity.Actor{ID: 20, Role: entity.RoleSubdistrictAdmin, SubdistrictID: 4})
	require.NoError(t, err)
	assert.Equal(t, "Menteng", admin.SubdistrictName)

	city, err := svc.ResolveActor(ctx, entity.Actor{ID: 30, Role: entity.RoleCityAdmin, CityID: 2})
	require.NoError(t, err)
	assert.Equal(t, "Jakarta Pusat", city.CityName)

	_, err = svc.ResolveActor(ctx, entity.Actor{ID: 40, Role: entity.RoleCityAdmin})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = svc.ResolveActor(ctx, entity.Actor{ID: 41, Role: entity.RoleSubdistrictAdmin, SubdistrictID: 77})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
