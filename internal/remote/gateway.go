// Package remote wraps the hosted relational backend. Every write is an
// upsert keyed by id, so replaying the same payload is harmless.
package remote

import (
	"context"

	"schedule-sync-backend/internal/model"
)

// Query narrows a Fetch. The zero value selects every row.
type Query struct {
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
	// Filters are equality matches on column name.
	Filters map[string]string
}

// Gateway is the CRUD surface of the backend. Implementations do not check
// connectivity; callers decide whether to try.
//
// Errors are *apperror.AppError with code REMOTE_UNAVAILABLE (transport
// failures, timeouts, 5xx) or REMOTE_REJECTED (the backend refused).
type Gateway interface {
	// Fetch decodes the matching rows of table into dest, a pointer to a slice.
	Fetch(ctx context.Context, table model.Table, q Query, dest any) error
	// Upsert inserts or replaces records (a slice) keyed on id.
	Upsert(ctx context.Context, table model.Table, records any) error
	// Delete removes the rows with the given ids.
	Delete(ctx context.Context, table model.Table, ids []string) error
}
