package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/marksync/internal/ir"
)

// timeLayout is used for every TEXT timestamp column.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// marshalPayload converts a change payload to JSON TEXT for storage.
func marshalPayload(p ir.ChangePayload) (string, error) {
	data, err := ir.MarshalPayload(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalPayload parses stored JSON TEXT and checks it against the
// change_type column.
func unmarshalPayload(changeType, data string) (ir.ChangePayload, error) {
	p, err := ir.UnmarshalPayload([]byte(data))
	if err != nil {
		return nil, err
	}
	if string(p.ChangeType()) != changeType {
		return nil, fmt.Errorf("payload type %q does not match change_type %q", p.ChangeType(), changeType)
	}
	return p, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
