// Package session keeps the marketplace bearer token between CLI runs.
//
// Tokens are stored in a TokenStore (in memory or SQLite). Login and logout
// do not write the store themselves: they return PersistToken and
// ForgetToken effects that the caller runs after the operation settled.
package session
