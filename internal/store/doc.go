// Package store defines the persistence contracts of the assignment service:
// the subscriber registry, the profession catalog and the board/task store.
// Implementations live under internal/platform (Postgres and in-memory), so
// assignment logic stays independent of the storage technology.
package store
