// Package postgres provides PostgreSQL implementations of the subscriber,
// catalog and board stores defined in internal/store, together with the
// embedded goose schema migrations. Queries go through database/sql with the
// pgx stdlib driver; driver errors are mapped onto store sentinels by MapError.
package postgres
