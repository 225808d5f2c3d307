// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters than the
// current configuration so the directory can re-hash after the next login.
//
// Length policy lives here: passwords shorter than MinPasswordBytes or longer than
// MaxPasswordBytes fail with [ErrPolicy]. Nothing in this package stores or logs
// plaintext.
package password
