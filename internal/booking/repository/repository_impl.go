package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/railbook/internal/booking/domain"
	dbpkg "github.com/smallbiznis/railbook/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	err := db.WithContext(ctx).Create(record).Error
	if dbpkg.IsDuplicateKeyErr(err) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateRecord, record.BookingID)
	}
	return err
}

func (r *repo) FindOne(ctx context.Context, db *gorm.DB, filter domain.Filter) (*domain.Record, error) {
	var records []domain.Record
	err := applyFilter(db.WithContext(ctx).Model(&domain.Record{}), filter).
		Order("created_at asc, id asc").
		Limit(1).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, filter domain.Filter) ([]domain.Record, error) {
	var records []domain.Record
	err := applyFilter(db.WithContext(ctx).Model(&domain.Record{}), filter).
		Order("created_at asc, id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields domain.Fields) error {
	if fields.IsEmpty() {
		return domain.ErrEmptyUpdate
	}
	values := map[string]any{}
	if fields.OrderStatus != nil {
		values["order_status"] = *fields.OrderStatus
	}
	if fields.PaymentStatus != nil {
		values["payment_status"] = *fields.PaymentStatus
	}
	if fields.Status != nil {
		values["status"] = *fields.Status
	}
	if fields.Snapshot != nil {
		names := fields.Snapshot.ServiceNames
		if names == nil {
			names = []string{}
		}
		values["raw_booking"] = fields.Snapshot.RawBooking
		values["service_names"] = datatypes.JSONSlice[string](names)
	}

	res := db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func applyFilter(stmt *gorm.DB, filter domain.Filter) *gorm.DB {
	if filter.ID != 0 {
		stmt = stmt.Where("id = ?", filter.ID)
	}
	if filter.BookingID != "" {
		stmt = stmt.Where("booking_id = ?", filter.BookingID)
	}
	if filter.PaymentLinkID != "" {
		stmt = stmt.Where("payment_link_id = ?", filter.PaymentLinkID)
	}
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	return stmt
}
