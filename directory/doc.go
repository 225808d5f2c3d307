// Package directory is a gorm-backed account store that satisfies
// goSession.UserDirectory and goSession.LoginRecorder.
//
// [Open] picks the PostgreSQL driver for postgres:// URLs and key/value DSNs
// and SQLite otherwise, which is what tests and single-node deployments use.
package directory
