package store

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes store failures.
type ErrorKind string

const (
	// KindTransport is a storage-engine failure: I/O, quota, corruption,
	// constraint violations. Never a missing row.
	KindTransport ErrorKind = "TRANSPORT"

	// KindNotFound means the requested entity does not exist. Distinct from
	// transport failures so callers must branch on missing-vs-failed.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindMigration is a schema migration failure. Fatal to store
	// initialization; carries a diagnostic dump of the pre-migration data.
	KindMigration ErrorKind = "MIGRATION"

	// KindDanglingRef means a stored ID points at an entity that has since
	// been deleted (a pipeline step referencing a removed transformation).
	KindDanglingRef ErrorKind = "DANGLING_REF"
)

// Error is the single tagged error variant for every store failure mode.
// Title and Detail are human-readable and safe to render directly; the
// underlying cause is preserved for errors.Is/As inspection.
type Error struct {
	Kind   ErrorKind
	Title  string
	Detail string
	Cause  error

	// Dump is set only for KindMigration: a snapshot of the pre-migration
	// table contents for manual recovery.
	Dump *DiagnosticDump
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Title, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Title, e.Detail)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// newError is the shared constructor for all store error call sites.
func newError(kind ErrorKind, title, detail string, cause error) *Error {
	return &Error{Kind: kind, Title: title, Detail: detail, Cause: cause}
}

// transportErr wraps a storage-engine failure.
func transportErr(title string, cause error) *Error {
	return newError(KindTransport, title, "the storage engine reported an error", cause)
}

// notFoundErr reports a missing entity.
func notFoundErr(entity, id string) *Error {
	return newError(KindNotFound, entity+" not found", fmt.Sprintf("no %s with id %q", entity, id), nil)
}

// DanglingRef reports a reference to a deleted entity. Pipeline execution
// uses it when a step points at a transformation that no longer exists.
func DanglingRef(entity, id string) *Error {
	return newError(KindDanglingRef, "dangling "+entity+" reference",
		fmt.Sprintf("%s %q is referenced but no longer exists", entity, id), nil)
}

// IsNotFound reports whether err is a store not-found error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return isKind(err, KindNotFound)
}

// IsMigration reports whether err is a migration failure.
func IsMigration(err error) bool {
	return isKind(err, KindMigration)
}

// IsDanglingRef reports whether err is a dangling-reference error.
func IsDanglingRef(err error) bool {
	return isKind(err, KindDanglingRef)
}

func isKind(err error, kind ErrorKind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// AsMigration extracts the migration error, if any, so callers can reach the
// diagnostic dump.
func AsMigration(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) && se.Kind == KindMigration {
		return se, true
	}
	return nil, false
}
