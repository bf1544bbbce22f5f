package models

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/contracts_backend/utils"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// a missing referenced record is the caller's mistake; other lookup errors are not
func notFoundAsInput(err error, msg string) error {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return utils.InvalidInput(msg)
	}
	return err
}
