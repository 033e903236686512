package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicate se devuelve cuando una restricción UNIQUE rechaza la escritura.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict se devuelve cuando un UPDATE condicional no afectó filas
	// porque el estado cambió entre la lectura y la escritura.
	ErrConflict = errors.New("record state changed")
)

const pgUniqueViolation = "23505"

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
