package pg

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/dropDatabas3/caishen/internal/domain/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mapErr traduce errores de pgx a los errores de repository.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return fmt.Errorf("pg %s: %w", op, repository.ErrConflict)
		case pgErr.Code == "22P02", pgErr.Code == "23514", pgErr.Code == "23502":
			return fmt.Errorf("pg %s: %w: %s", op, repository.ErrInvalidInput, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "53300":
			// connection_exception, admin_shutdown, too_many_connections
			return fmt.Errorf("pg %s: %w: %w", op, repository.ErrUnavailable, err)
		}
		return fmt.Errorf("pg %s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("pg %s: %w: %w", op, repository.ErrUnavailable, err)
	}
	return fmt.Errorf("pg %s: %w", op, err)
}
