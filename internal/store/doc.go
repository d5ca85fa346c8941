// Package store provides the SQLite-backed table store the reference
// executor runs delegated plans against.
//
// Each certified table becomes one SQLite table whose columns follow the
// table metadata in declaration order. Values round-trip through the
// storage type of their column:
//   - boolean: INTEGER 0/1
//   - number, decimal, currency: NUMERIC
//   - string, guid, datetime: TEXT (guids in canonical lowercase form)
//
// # Database Configuration
//
//   - A single connection, so an in-memory database (":memory:") lives as
//     long as the Store
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// All queries come from internal/querysql and are parameterized.
package store
