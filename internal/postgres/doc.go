// Package postgres stores users and sessions in PostgreSQL through a pgx pool.
//
// The schema ships as embedded golang-migrate migrations; call Migrate before
// using the stores. SessionStore satisfies the engine session store and its
// optional capabilities. UserStore is a CredentialStore.
package postgres
