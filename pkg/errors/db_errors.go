// Package errors classifies catalog database errors from MySQL, SQLite and GORM.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// DatabaseErrorType represents the type of database error.
type DatabaseErrorType int

const (
	// ErrorTypeUnknown represents an unknown database error.
	ErrorTypeUnknown DatabaseErrorType = iota
	// ErrorTypeDuplicateKey represents a unique constraint violation.
	ErrorTypeDuplicateKey
	// ErrorTypeConstraintViolation represents a foreign key, not null or check violation.
	ErrorTypeConstraintViolation
	// ErrorTypeDataTooLong represents a value wider than its column (MySQL 1406).
	ErrorTypeDataTooLong
	// ErrorTypeNotFound represents a record not found error.
	ErrorTypeNotFound
	// ErrorTypeBusy represents a deadlock (MySQL 1213) or a locked SQLite database.
	ErrorTypeBusy
	// ErrorTypeConnectionError represents a database connection error.
	ErrorTypeConnectionError
	// ErrorTypeInvalidValue represents an invalid value error.
	ErrorTypeInvalidValue
)

// DatabaseError wraps a database error with classification information.
type DatabaseError struct {
	Type        DatabaseErrorType
	OriginalErr error
	// Code is the MySQL error number, 0 for other drivers.
	Code    uint16
	Message string
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s (MySQL error %d): %v", e.Message, e.Code, e.OriginalErr)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.OriginalErr)
}

// Unwrap returns the underlying error for errors.Is and errors.As compatibility.
func (e *DatabaseError) Unwrap() error {
	return e.OriginalErr
}

// ClassifyDBError classifies a database error into a specific error type.
//
//   - gorm.ErrRecordNotFound → ErrorTypeNotFound
//   - gorm.ErrDuplicatedKey, MySQL 1062, SQLite "UNIQUE constraint failed" → ErrorTypeDuplicateKey
//   - MySQL 1451/1452, SQLite "FOREIGN KEY constraint failed" → ErrorTypeConstraintViolation
//   - MySQL 1406 → ErrorTypeDataTooLong
//   - MySQL 1213, SQLite "database is locked" → ErrorTypeBusy
//   - connection failures → ErrorTypeConnectionError
//
// Example:
//
//	if err := repo.UpsertClub(ctx, club); err != nil {
//	    if errors.ClassifyDBError(err).Type == errors.ErrorTypeDuplicateKey {
//	        // another worker imported the same club
//	    }
//	}
func ClassifyDBError(err error) *DatabaseError {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &DatabaseError{Type: ErrorTypeNotFound, OriginalErr: err, Message: "record not found"}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &DatabaseError{Type: ErrorTypeDuplicateKey, OriginalErr: err, Message: "duplicate key constraint violation"}
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return classifyMySQLError(mysqlErr)
	}

	errMsg := err.Error()
	if dbErr := classifySQLiteError(err, errMsg); dbErr != nil {
		return dbErr
	}

	if isConnectionError(errMsg) {
		return &DatabaseError{Type: ErrorTypeConnectionError, OriginalErr: err, Message: "database connection error"}
	}

	return &DatabaseError{Type: ErrorTypeUnknown, OriginalErr: err, Message: "unknown database error"}
}

// classifyMySQLError classifies a MySQL-specific error.
func classifyMySQLError(err *mysql.MySQLError) *DatabaseError {
	dbErr := &DatabaseError{OriginalErr: err, Code: err.Number}

	switch err.Number {
	case 1062: // ER_DUP_ENTRY
		dbErr.Type, dbErr.Message = ErrorTypeDuplicateKey, "duplicate key constraint violation"
	case 1452: // ER_NO_REFERENCED_ROW_2
		dbErr.Type, dbErr.Message = ErrorTypeConstraintViolation, "foreign key constraint violation"
	case 1451: // ER_ROW_IS_REFERENCED_2
		dbErr.Type, dbErr.Message = ErrorTypeConstraintViolation, "cannot delete/update record due to foreign key constraint"
	case 1406: // ER_DATA_TOO_LONG
		dbErr.Type, dbErr.Message = ErrorTypeDataTooLong, "data too long for column"
	case 1213: // ER_LOCK_DEADLOCK
		dbErr.Type, dbErr.Message = ErrorTypeBusy, "deadlock detected"
	case 1048: // ER_BAD_NULL_ERROR
		dbErr.Type, dbErr.Message = ErrorTypeInvalidValue, "column cannot be null"
	case 1265, 1366: // ER_WARN_DATA_TRUNCATED, ER_TRUNCATED_WRONG_VALUE
		dbErr.Type, dbErr.Message = ErrorTypeInvalidValue, "invalid or truncated value"
	default:
		dbErr.Type, dbErr.Message = ErrorTypeUnknown, "MySQL error"
	}
	return dbErr
}

// classifySQLiteError matches the messages of the pure-Go SQLite driver,
// which does not export typed errors through GORM.
func classifySQLiteError(err error, errMsg string) *DatabaseError {
	switch {
	case contains(errMsg, "UNIQUE constraint failed"):
		return &DatabaseError{Type: ErrorTypeDuplicateKey, OriginalErr: err, Message: "duplicate key constraint violation"}
	case contains(errMsg, "FOREIGN KEY constraint failed"):
		return &DatabaseError{Type: ErrorTypeConstraintViolation, OriginalErr: err, Message: "foreign key constraint violation"}
	case contains(errMsg, "NOT NULL constraint failed"):
		return &DatabaseError{Type: ErrorTypeInvalidValue, OriginalErr: err, Message: "column cannot be null"}
	case contains(errMsg, "database is locked"), contains(errMsg, "SQLITE_BUSY"):
		return &DatabaseError{Type: ErrorTypeBusy, OriginalErr: err, Message: "database is locked"}
	}
	return nil
}

// isConnectionError checks if the error message indicates a connection problem.
func isConnectionError(errMsg string) bool {
	connectionKeywords := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"connection lost",
		"can't connect",
		"dial tcp",
		"unable to open database file",
	}

	for _, keyword := range connectionKeywords {
		if contains(errMsg, keyword) {
			return true
		}
	}
	return false
}

// contains reports whether substr is within str, ignoring case.
func contains(str, substr string) bool {
	return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
}

// IsDuplicateKeyError checks if the error is a duplicate key constraint violation.
func IsDuplicateKeyError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeDuplicateKey
}

// IsNotFoundError checks if the error is a record not found error.
func IsNotFoundError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeNotFound
}

// IsConstraintViolationError checks if the error is a constraint violation.
func IsConstraintViolationError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeConstraintViolation
}

// IsBusyError checks if the error is a deadlock or a locked database.
func IsBusyError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeBusy
}
