// Package testutil contains builders for core events and sessions used by
// tests across the module. It is not intended for production use.
package testutil
