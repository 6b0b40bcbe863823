// Package tensor provides flat, row-major typed buffers with a leading
// record dimension. It is the value type exchanged between the field
// stores, the population pipeline and the batched reader.
package tensor
