// Package repository holds the MySQL-backed stores.  The sentinel errors
// below let higher layers tell missing rows and unique-key collisions
// apart from infrastructure failures without importing the driver.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrNoTx is returned by row-locking reads called outside WithTx.
var ErrNoTx = errors.New("row lock requires a transaction")

// isDuplicate reports MySQL error 1062 (ER_DUP_ENTRY).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
