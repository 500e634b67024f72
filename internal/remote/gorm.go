package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
)

// GormGateway talks to Postgres directly.
type GormGateway struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewGormGateway(db *gorm.DB, log logrus.FieldLogger) *GormGateway {
	return &GormGateway{db: db, log: log.WithField("component", "remote.gorm")}
}

// typed re-decodes records into the table's own slice type so gorm sees
// the right schema whatever shape the caller handed in.
func typed(table model.Table, records any) (any, int, error) {
	slice, err := table.NewSlice()
	if err != nil {
		return nil, 0, err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode %s: %w", table, err)
	}
	if err := json.Unmarshal(data, slice); err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", table, err)
	}
	return slice, reflect.ValueOf(slice).Elem().Len(), nil
}

// Fetch implements Gateway.
func (g *GormGateway) Fetch(ctx context.Context, table model.Table, q Query, dest any) error {
	tx := g.db.WithContext(ctx).Table(string(table))
	for col, val := range q.Filters {
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: col}, Value: val})
	}
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if err := tx.Find(dest).Error; err != nil {
		return classifyDB(err)
	}
	return nil
}

// Upsert implements Gateway with INSERT ... ON CONFLICT (id) DO UPDATE.
func (g *GormGateway) Upsert(ctx context.Context, table model.Table, records any) error {
	slice, n, err := typed(table, records)
	if err != nil {
		return apperror.RemoteRejected(http.StatusBadRequest, err.Error())
	}
	if n == 0 {
		return nil
	}

	g.log.WithFields(logrus.Fields{"table": table, "count": n}).Debug("Upserting records")
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(slice).Error
	return classifyDB(err)
}

// Delete implements Gateway.
func (g *GormGateway) Delete(ctx context.Context, table model.Table, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	slice, err := table.NewSlice()
	if err != nil {
		return apperror.RemoteRejected(http.StatusBadRequest, err.Error())
	}
	elem := reflect.New(reflect.TypeOf(slice).Elem().Elem()).Interface()

	err = g.db.WithContext(ctx).Where("id IN ?", ids).Delete(elem).Error
	return classifyDB(err)
}
