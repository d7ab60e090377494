package mysql

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/guillermoBallester/cleansweep/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		lost bool
	}{
		{"bad conn", driver.ErrBadConn, true},
		{"invalid conn", fmt.Errorf("executing query: %w", mysqldrv.ErrInvalidConn), true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"server gone", &mysqldrv.MySQLError{Number: 2006, Message: "MySQL server has gone away"}, true},
		{"server lost", &mysqldrv.MySQLError{Number: 2013, Message: "Lost connection"}, true},
		{"network", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, true},
		{"lock wait timeout", &mysqldrv.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, false},
		{"syntax", &mysqldrv.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.ErrorIs(t, got, tt.err)
			assert.Equal(t, tt.lost, errors.Is(got, domain.ErrConnectionLost))
		})
	}
	assert.NoError(t, classify(nil))
}
