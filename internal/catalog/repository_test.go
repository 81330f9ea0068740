package catalog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/fjod/go_cart/settlement-service/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	laptopID = "66f1c2a4e1b2c3d4e5f60001"
	mouseID  = "66f1c2a4e1b2c3d4e5f60002"
)

func setupTestDB(t *testing.T) *catalog.Repository {
	// Use in-memory database for tests
	repo, err := catalog.NewRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test repository: %v", err)
	}

	if err := repo.RunMigrations("./migrations"); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return repo
}

func TestGetPrices_KnownProducts(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	prices, err := repo.GetPrices(context.Background(), []string{laptopID, mouseID})
	require.NoError(t, err)

	assert.Len(t, prices, 2)
	assert.Equal(t, domain.Cents(129999), prices[laptopID])
	assert.Equal(t, domain.Cents(2999), prices[mouseID])
}

func TestGetPrices_UnknownProductIsAbsent(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	prices, err := repo.GetPrices(context.Background(), []string{laptopID, "ghost"})
	require.NoError(t, err)

	assert.Len(t, prices, 1)
	_, found := prices["ghost"]
	assert.False(t, found)
}

func TestGetPrices_LargeLookupIsBatched(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	ids := make([]string, 0, 40000)
	for i := range 40000 {
		ids = append(ids, fmt.Sprintf("missing-%d", i))
	}
	ids = append(ids, laptopID)
	ids = append([]string{mouseID}, ids...)

	prices, err := repo.GetPrices(context.Background(), ids)
	require.NoError(t, err)

	assert.Len(t, prices, 2)
	assert.Equal(t, domain.Cents(129999), prices[laptopID])
	assert.Equal(t, domain.Cents(2999), prices[mouseID])
}

func TestGetPrices_Empty(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	prices, err := repo.GetPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestGetPrices_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := repo.GetPrices(ctx, []string{laptopID})
	assert.Error(t, err)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	repo := setupTestDB(t)
	defer repo.Close()

	assert.NoError(t, repo.RunMigrations("./migrations"))
}
