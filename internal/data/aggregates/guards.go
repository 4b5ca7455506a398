package aggregates

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
)

// CASGuard performs compare-and-set updates keyed on a status column.
type CASGuard struct {
	db    *gorm.DB
	scope domainagg.Contract
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

// For restricts the guard to the tables the contract writes.
func (g CASGuard) For(c domainagg.Contract) CASGuard {
	g.scope = c
	return g
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx == nil && g.db == nil {
		return nil, ValidationError("missing db transaction context")
	}
	return dbc.DB(g.db), nil
}

// UpdateByStatus updates table.id only while its "status" column is one of allowedStatuses.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, allowedStatuses []string, updates map[string]any) (bool, error) {
	return g.UpdateByStatusColumn(dbc, table, "status", id, allowedStatuses, updates)
}

// UpdateByStatusColumn is UpdateByStatus for tables whose status column has another name.
// It reports false when no row still held an allowed status.
func (g CASGuard) UpdateByStatusColumn(dbc dbctx.Context, table, column string, id uuid.UUID, allowedStatuses []string, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	column = strings.TrimSpace(column)
	if table == "" || column == "" || id == uuid.Nil {
		return false, ValidationError("table, status column and id are required for a status CAS")
	}
	if len(allowedStatuses) == 0 {
		return false, ValidationError("allowedStatuses must not be empty")
	}
	if !g.scope.AllowsWrite(table) {
		return false, domainagg.NewError(domainagg.CodeInternal, g.scope.Name, "status update on "+table+" is outside the aggregate contract", nil)
	}
	res := db.Table(table).
		Where("id = ?", id).
		Where(column+" IN ?", allowedStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a lost compare-and-set into a conflict.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

func RequireStatusAllowed(current string, allowed ...string) error {
	current = strings.TrimSpace(current)
	if len(allowed) == 0 {
		return ValidationError("allowed statuses cannot be empty")
	}
	for _, s := range allowed {
		if strings.EqualFold(current, strings.TrimSpace(s)) {
			return nil
		}
	}
	return ConflictError("status " + current + " does not allow this transition")
}
