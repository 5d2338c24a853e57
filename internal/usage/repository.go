// Package usage implements the weekly tool-usage limit subsystem: a
// repository over the document store, an orchestrating tracker, and a
// per-user monitor that view code consumes.
//
// One document per user holds the current week's usage record. Stale records
// (prior weeks) are superseded in place, never deleted.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/teachai/server/internal/docstore"
	"github.com/teachai/server/internal/domain"
)

// docKey returns the document-store key for a user's usage record.
func docKey(userID string) string {
	return "usage/" + userID
}

// Repository translates between UsageRecord and the document store. It owns
// the decode/validate boundary: raw store documents are checked for shape
// before they cross into policy or tracker code.
type Repository struct {
	store  docstore.Store
	logger *slog.Logger
}

// NewRepository creates a Repository over the given store.
func NewRepository(store docstore.Store, logger *slog.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger,
	}
}

// LoadCurrent reads the user's stored usage record.
//
// Returns nil with no error when no record exists. The record is returned
// exactly as stored, with its own week start preserved; staleness is judged
// by callers against a clock reading.
func (r *Repository) LoadCurrent(ctx context.Context, userID string) (*domain.UsageRecord, error) {
	const op = "usage.load"

	if userID == "" {
		return nil, domain.Unauthorized(op, "Sign in to use tools")
	}

	raw, ok, err := r.store.Get(ctx, docKey(userID))
	if err != nil {
		return nil, domain.Persistence(err, op)
	}
	if !ok {
		return nil, nil
	}

	record, err := decodeRecord(raw, userID)
	if err != nil {
		// Malformed documents never propagate upward as loosely-typed data.
		r.logger.Error("stored usage record is malformed",
			"user_id", userID,
			"error", err,
		)
		return nil, domain.Internal(err, op, "stored usage record is malformed")
	}
	return record, nil
}

// Replace idempotently overwrites the user's usage document with the given
// record. The whole document is the unit of write; there is no merge.
func (r *Repository) Replace(ctx context.Context, userID string, record *domain.UsageRecord) error {
	const op = "usage.replace"

	if userID == "" {
		return domain.Unauthorized(op, "Sign in to use tools")
	}
	if record == nil || record.UserID != userID {
		return domain.Invalid(op, "record does not belong to the caller")
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return domain.Internal(err, op, "encode usage record")
	}
	if err := r.store.Set(ctx, docKey(userID), raw); err != nil {
		return domain.Persistence(err, op)
	}
	return nil
}

// Subscribe opens a live subscription to the user's usage document. fn is
// invoked once immediately with current state (nil when absent) and again on
// every subsequent change. A document that fails decoding is delivered as
// absent after logging, so consumers fall back to the zero-usage policy
// rather than acting on corrupt state.
func (r *Repository) Subscribe(ctx context.Context, userID string, fn func(*domain.UsageRecord)) (docstore.Unsubscribe, error) {
	const op = "usage.subscribe"

	if userID == "" {
		return nil, domain.Unauthorized(op, "Sign in to use tools")
	}

	unsub, err := r.store.Subscribe(ctx, docKey(userID), func(raw json.RawMessage, ok bool) {
		if !ok {
			fn(nil)
			return
		}
		record, err := decodeRecord(raw, userID)
		if err != nil {
			r.logger.Error("subscribed usage record is malformed",
				"user_id", userID,
				"error", err,
			)
			fn(nil)
			return
		}
		fn(record)
	})
	if err != nil {
		return nil, domain.Persistence(err, op)
	}
	return unsub, nil
}

// decodeRecord validates the raw document shape and converts it into a typed
// record. It rejects documents that belong to a different user or carry no
// week start.
func decodeRecord(raw json.RawMessage, userID string) (*domain.UsageRecord, error) {
	var record domain.UsageRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode usage record: %w", err)
	}
	if record.UserID != userID {
		return nil, fmt.Errorf("usage record user %q does not match document owner %q", record.UserID, userID)
	}
	if record.WeekStartDate.IsZero() {
		return nil, fmt.Errorf("usage record has no week start date")
	}
	for i, ev := range record.Usages {
		if ev.ToolID == "" {
			return nil, fmt.Errorf("usage event %d has no tool id", i)
		}
		if ev.Timestamp.IsZero() {
			return nil, fmt.Errorf("usage event %d has no timestamp", i)
		}
	}
	return &record, nil
}
