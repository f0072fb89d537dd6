// Package shared holds the record and identity types that travel between
// the LifeDash client and the store service: rows, filters, select
// options and results, users and sessions.
package shared
