// Package store holds the Postgres and Redis backed repositories.
package store

import (
	"encoding/json"
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound      = errors.New("NOT_FOUND")
	ErrDuplicateKey  = errors.New("DUPLICATE_KEY")
	ErrStaleVersion  = errors.New("STALE_VERSION")
	ErrAlreadyExists = errors.New("ALREADY_EXISTS")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
