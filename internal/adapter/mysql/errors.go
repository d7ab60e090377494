package mysql

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/guillermoBallester/cleansweep/internal/core/domain"
)

// Server error numbers after which the session is gone but a new one may work.
var connectionLostCodes = map[uint16]bool{
	1053: true, // ER_SERVER_SHUTDOWN
	1927: true, // ER_CONNECTION_KILLED
	2006: true, // CR_SERVER_GONE_ERROR
	2013: true, // CR_SERVER_LOST
}

// classify marks errors a reconnect can recover from with
// domain.ErrConnectionLost.
func classify(err error) error {
	if err == nil || !isConnectionLost(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrConnectionLost, err)
}

func isConnectionLost(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysqldrv.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		return connectionLostCodes[myErr.Number]
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
