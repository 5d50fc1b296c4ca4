package user

import (
	"context"
	"testing"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/platform/database/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newProfile(name, email, phone, role, area string) *Profile {
	p := &Profile{Name: name, Role: role, IsActive: true, AuthProvider: ProviderLocal}
	if email != "" {
		p.Email = strPtr(email)
	}
	if phone != "" {
		p.PhoneNumber = strPtr(phone)
	}
	p.SetArea(area)
	return p
}

func setupRepo(t *testing.T) Repository {
	return NewGORMRepository(testdb.New(t, &Profile{}))
}

func TestRepository_CreateAndFind(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	p := newProfile("Ada", "  Ada@Example.COM ", "+15551234567", common.RoleResident, "North Ward")
	require.NoError(t, repo.Create(ctx, p))
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "ada@example.com", *p.Email)
	assert.Equal(t, "north-ward", p.AreaSlug)

	byEmail, err := repo.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byEmail.ID)

	byPhone, err := repo.FindByPhone(ctx, "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byPhone.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRepository_DuplicateIdentity(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newProfile("A", "a@x.io", "", common.RoleResident, "Ward 1")))
	err := repo.Create(ctx, newProfile("B", "A@X.io", "", common.RoleResident, "Ward 1"))
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)

	require.NoError(t, repo.Create(ctx, newProfile("C", "", "+15550000001", common.RoleResident, "Ward 1")))
	err = repo.Create(ctx, newProfile("D", "", "+15550000001", common.RoleResident, "Ward 1"))
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)
}

func TestRepository_Exists(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newProfile("A", "a@x.io", "+15550000002", common.RoleResident, "Ward 1")))

	ok, err := repo.ExistsByEmail(ctx, "A@x.io")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExistsByEmail(ctx, "nobody@x.io")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ExistsByPhone(ctx, "+15550000002")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_ListFilters(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newProfile("Res One", "r1@x.io", "", common.RoleResident, "Ward 1")))
	require.NoError(t, repo.Create(ctx, newProfile("Res Two", "r2@x.io", "", common.RoleResident, "Ward 2")))
	off := newProfile("Officer", "o@x.io", "", common.RoleOfficial, "")
	off.IsActive = false
	require.NoError(t, repo.Create(ctx, off))

	all, pg, err := repo.List(ctx, ListFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, int64(3), pg.TotalItems)

	residents, _, err := repo.List(ctx, ListFilter{Role: common.RoleResident}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, residents, 2)

	inactive := false
	list, _, err := repo.List(ctx, ListFilter{IsActive: &inactive}, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, off.ID, list[0].ID)

	byArea, _, err := repo.List(ctx, ListFilter{Area: "ward 2"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, byArea, 1)
	assert.Equal(t, "Res Two", byArea[0].Name)

	byQuery, _, err := repo.List(ctx, ListFilter{Query: "offic"}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, byQuery, 1)

	paged, pg, err := repo.List(ctx, ListFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, paged, 1)
	assert.Equal(t, 2, pg.TotalPages)
}

func TestRepository_ListActiveByAreaSlug(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newProfile("A", "a@x.io", "", common.RoleResident, "Ward 1")))
	gone := newProfile("B", "b@x.io", "", common.RoleResident, "Ward 1")
	gone.IsActive = false
	require.NoError(t, repo.Create(ctx, gone))
	require.NoError(t, repo.Create(ctx, newProfile("C", "c@x.io", "", common.RoleOfficial, "Ward 1")))

	residents, err := repo.ListActiveByAreaSlug(ctx, "ward-1", common.RoleResident)
	require.NoError(t, err)
	require.Len(t, residents, 1)
	assert.Equal(t, "A", residents[0].Name)

	everyone, err := repo.ListActiveByAreaSlug(ctx, "ward-1", "")
	require.NoError(t, err)
	assert.Len(t, everyone, 2)
}

func TestRepository_TokenVersionAndDelete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	p := newProfile("A", "a@x.io", "", common.RoleResident, "Ward 1")
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.BumpTokenVersion(ctx, p.ID))
	require.NoError(t, repo.BumpTokenVersion(ctx, p.ID))
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.TouchLastLogin(ctx, p.ID, now))

	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TokenVersion)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, now.Equal(got.LastLoginAt.UTC()))

	require.NoError(t, repo.Delete(ctx, p.ID))
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), common.ErrNotFound)
	assert.ErrorIs(t, repo.BumpTokenVersion(ctx, p.ID), common.ErrNotFound)
}

func TestRepository_CountByRole(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newProfile("A", "a@example.com", "", common.RoleResident, "North")))
	require.NoError(t, repo.Create(ctx, newProfile("B", "b@example.com", "", common.RoleResident, "South")))
	require.NoError(t, repo.Create(ctx, newProfile("C", "c@example.com", "", common.RoleOfficial, "North")))

	rows, err := repo.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, []RoleCount{
		{Role: common.RoleOfficial, Count: 1},
		{Role: common.RoleResident, Count: 2},
	}, rows)
}
