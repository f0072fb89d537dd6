// Package profiles owns the profile record and the rules that decide a
// user's role.
//
// Resolver.Resolve runs on every session transition. It provisions missing
// profiles, backfills missing emails and keeps the distinguished admin
// address at role admin. Store failures never block a session: the role is
// then derived from the email alone and the resolution is marked degraded.
//
// Resolver.SignUpRole implements the bootstrap rule: the first account ever
// created becomes admin.
package profiles
