package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/railbook/internal/booking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Record{}))
	return db
}

func seed(t *testing.T, db *gorm.DB, node *snowflake.Node, bookingID, email, status string, at time.Time) domain.Record {
	t.Helper()
	record := domain.Record{
		ID:            node.Generate(),
		Email:         email,
		CustomerID:    "CUST1",
		BookingID:     bookingID,
		OrderID:       "ORD-" + bookingID,
		PaymentLinkID: "PL-" + bookingID,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        status,
		RawBooking:    `{"id":"` + bookingID + `"}`,
		ServiceNames:  []string{"Cut"},
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	require.NoError(t, Provide().Create(context.Background(), db, &record))
	return record
}

func TestFindOneReturnsNilWhenMissing(t *testing.T) {
	db := openDB(t)

	record, err := Provide().FindOne(context.Background(), db, domain.Filter{PaymentLinkID: "nope"})
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestFindOneFiltersOnStatus(t *testing.T) {
	db := openDB(t)
	node, _ := snowflake.NewNode(1)
	now := time.Now().UTC()
	seed(t, db, node, "BK1", "a@example.com", domain.StatusCancelledByCustomer, now)

	repo := Provide()
	found, err := repo.FindOne(context.Background(), db, domain.Filter{BookingID: "BK1", Status: domain.StatusAccepted})
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = repo.FindOne(context.Background(), db, domain.Filter{BookingID: "BK1"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.StatusCancelledByCustomer, found.Status)
	assert.Equal(t, []string{"Cut"}, []string(found.ServiceNames))
}

func TestFindKeepsInsertionOrder(t *testing.T) {
	db := openDB(t)
	node, _ := snowflake.NewNode(1)
	base := time.Now().UTC().Truncate(time.Second)
	seed(t, db, node, "BK1", "a@example.com", domain.StatusAccepted, base)
	seed(t, db, node, "BK2", "b@example.com", domain.StatusAccepted, base.Add(time.Second))
	seed(t, db, node, "BK3", "a@example.com", domain.StatusAccepted, base.Add(2*time.Second))
	seed(t, db, node, "BK4", "a@example.com", domain.StatusCancelledByCustomer, base.Add(3*time.Second))

	records, err := Provide().Find(context.Background(), db, domain.Filter{Email: "a@example.com", Status: domain.StatusAccepted})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "BK1", records[0].BookingID)
	assert.Equal(t, "BK3", records[1].BookingID)
}

func TestUpdateFieldsMerges(t *testing.T) {
	db := openDB(t)
	node, _ := snowflake.NewNode(1)
	record := seed(t, db, node, "BK1", "a@example.com", domain.StatusAccepted, time.Now().UTC())

	repo := Provide()
	completed := "COMPLETED"
	require.NoError(t, repo.UpdateFields(context.Background(), db, record.ID, domain.Fields{OrderStatus: &completed}))

	got, err := repo.FindOne(context.Background(), db, domain.Filter{ID: record.ID})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "COMPLETED", got.OrderStatus)
	assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)
	assert.Equal(t, record.RawBooking, got.RawBooking)
	assert.Equal(t, []string{"Cut"}, []string(got.ServiceNames))
}

func TestUpdateFieldsWritesSnapshotTogether(t *testing.T) {
	db := openDB(t)
	node, _ := snowflake.NewNode(1)
	record := seed(t, db, node, "BK1", "a@example.com", domain.StatusAccepted, time.Now().UTC())

	repo := Provide()
	err := repo.UpdateFields(context.Background(), db, record.ID, domain.Fields{
		Snapshot: &domain.Snapshot{RawBooking: `{"id":"BK1","version":9007199254740993}`, ServiceNames: []string{"Cut", "Shave"}},
	})
	require.NoError(t, err)

	got, err := repo.FindOne(context.Background(), db, domain.Filter{ID: record.ID})
	require.NoError(t, err)
	assert.Equal(t, `{"id":"BK1","version":9007199254740993}`, got.RawBooking)
	assert.Equal(t, []string{"Cut", "Shave"}, []string(got.ServiceNames))
	assert.Equal(t, domain.StatusAccepted, got.Status)
}

func TestUpdateFieldsRejectsEmptyAndMissing(t *testing.T) {
	db := openDB(t)
	repo := Provide()

	err := repo.UpdateFields(context.Background(), db, 42, domain.Fields{})
	assert.ErrorIs(t, err, domain.ErrEmptyUpdate)

	status := domain.StatusCancelledByCustomer
	err = repo.UpdateFields(context.Background(), db, 42, domain.Fields{Status: &status})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateReportsDuplicateRecord(t *testing.T) {
	db := openDB(t)
	node, _ := snowflake.NewNode(1)
	record := seed(t, db, node, "BK1", "a@example.com", domain.StatusAccepted, time.Now().UTC())

	again := record
	err := Provide().Create(context.Background(), db, &again)
	assert.ErrorIs(t, err, domain.ErrDuplicateRecord)
}
