// Package conv provides overflow-safe integer conversions used when
// encoding and decoding on-disk headers.
package conv
