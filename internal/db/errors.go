package db

import (
	"database/sql/driver"
	"fmt"
	"net"
	"strings"

	"dosage-management/pkg/errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

const (
	mysqlTableExists    = 1050
	postgresTableExists = "42P07"
)

// classify wraps a driver error into a StoreError, telling communication
// failures apart from everything else and tagging existing-table errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if tableExists(err) {
		err = fmt.Errorf("%w: %v", errors.ErrTableExists, err)
	}
	return errors.NewStoreError(op, err, isCommunication(err))
}

func tableExists(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlTableExists
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresTableExists
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return strings.Contains(liteErr.Error(), "already exists")
	}
	return false
}

func isCommunication(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr) || pgconn.Timeout(err)
}
