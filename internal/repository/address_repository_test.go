package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/jewel_cart/internal/checkout"
	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupMongo(t *testing.T) AddressRepository {
	if testing.Short() {
		t.Skip("skipping mongodb container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)
	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewAddressRepository(db)
	require.NoError(t, repo.(*mongoAddressRepository).CreateIndexes(ctx))
	return repo
}

func homeAddress(session string) *domain.Address {
	return &domain.Address{
		SessionID: session,
		Name:      "Asha",
		Line:      domain.AddressParts{House: "12", Street: "MG Road", City: "Pune", Pincode: "411001"}.Compose(),
		Phone:     "9876543210",
	}
}

func TestAddressRepository_SaveListGet(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()

	home := homeAddress("s1")
	require.NoError(t, repo.Save(ctx, home))
	require.NotEmpty(t, home.ID)
	office := homeAddress("s1")
	office.Line = "Tower B, Hinjewadi, Pune"
	require.NoError(t, repo.Save(ctx, office))
	require.NoError(t, repo.Save(ctx, homeAddress("s2")))

	list, err := repo.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, home.ID, list[0].ID)
	assert.Equal(t, "12, MG Road, Pune, 411001", list[0].Line)

	got, err := repo.Get(ctx, "s1", office.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tower B, Hinjewadi, Pune", got.Line)

	_, err = repo.Get(ctx, "s2", office.ID)
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestAddressRepository_SaveUpdatesExisting(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()

	addr := homeAddress("s1")
	require.NoError(t, repo.Save(ctx, addr))
	addr.Phone = "9123456780"
	require.NoError(t, repo.Save(ctx, addr))

	list, err := repo.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "9123456780", list[0].Phone)
}

func TestAddressRepository_SaveRejectsInvalid(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()

	addr := homeAddress("s1")
	addr.Phone = "0123456789"
	err := repo.Save(ctx, addr)

	var verr *checkout.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "phone")

	list, err := repo.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAddressRepository_Delete(t *testing.T) {
	repo := setupMongo(t)
	ctx := context.Background()

	addr := homeAddress("s1")
	require.NoError(t, repo.Save(ctx, addr))

	require.NoError(t, repo.Delete(ctx, "s1", addr.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "s1", addr.ID), ErrAddressNotFound)
}
