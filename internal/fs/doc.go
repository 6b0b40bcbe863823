// Package fs abstracts file system access so storage allocation and flush
// failure paths can be exercised in tests via fault injection.
package fs
