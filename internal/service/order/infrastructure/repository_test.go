package infrastructure

import (
	"context"
	"strings"
	"testing"

	"beerorder/internal/pkg/bootstrap"
	"beerorder/internal/service/order/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder("c-1", "ref-1", []domain.OrderLine{
		{BeerID: "b-1", UPC: "0631234200036", OrderQuantity: 2},
		{BeerID: "b-2", UPC: "0631234300019", OrderQuantity: 5},
	})
	require.NoError(t, err)
	return o
}

func TestMemoryOrderRepository_VersionedSave(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOrderRepository()
	o := newOrder(t)
	require.NoError(t, repo.Create(ctx, o))
	assert.Error(t, repo.Create(ctx, o))

	a, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)

	a.Status = domain.StatusValidationPending
	a.Lines[0].QuantityAllocated = 1
	require.NoError(t, repo.Save(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	b.Status = domain.StatusCancelled
	assert.ErrorIs(t, repo.Save(ctx, b), domain.ErrVersionConflict)

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidationPending, got.Status)
	assert.Equal(t, 1, got.Lines[0].QuantityAllocated)

	// 返回的是副本
	got.Lines[0].QuantityAllocated = 2
	again, _ := repo.FindByID(ctx, o.ID)
	assert.Equal(t, 1, again.Lines[0].QuantityAllocated)
}

func TestMemoryOrderRepository_NotFound(t *testing.T) {
	repo := NewMemoryOrderRepository()
	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.ErrorIs(t, repo.Save(context.Background(), &domain.Order{ID: "missing"}), domain.ErrOrderNotFound)
}

func TestMapper_PreservesLineOrder(t *testing.T) {
	o := newOrder(t)
	o.Status = domain.StatusAllocated
	o.Version = 4

	m := ToOrderModel(o)
	assert.Equal(t, 1, m.Lines[1].Position)
	assert.Equal(t, o.ID, m.Lines[1].OrderID)
	assert.Equal(t, o, ToDomainOrder(m))
}

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(bootstrap.MySQLConfig{Addr: "db:3306", User: "app", Password: "secret", Database: "beerorder"})
	assert.True(t, strings.HasPrefix(dsn, "app:secret@tcp(db:3306)/beerorder?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	assert.Equal(t, "raw-dsn", BuildDSN(bootstrap.MySQLConfig{DSN: "raw-dsn", Addr: "ignored"}))
}
