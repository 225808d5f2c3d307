// Package pgstore provides PostgreSQL implementations of [refresh.Store] and
// [reset.Store] on top of a pgx connection pool, plus the goose migrations that
// create their tables.
//
// Rotation runs inside one transaction: a conditional
// UPDATE ... WHERE status = 'active' claims the presented record, and the successor
// is inserted only when that update touched exactly one row. A partial unique index
// keeps a single active record per family even if a caller misuses Create. Family
// revocation is a single UPDATE statement. Reset redemption is a conditional
// UPDATE ... WHERE NOT used ... RETURNING.
package pgstore
