// Package mmap provides thin, platform-specific memory mapping of open
// files, including shared read-write mappings used during store population.
package mmap
