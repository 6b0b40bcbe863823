// Package testutil provides seeded random and numbered tensor generators
// shared by tests and benchmarks.
package testutil
