// Package device defines opaque relocation targets for working batches.
//
// The core only needs "copy to X" semantics: a Device receives a tensor and
// returns a copy living in the device's memory. Executing computation on
// the target is out of scope.
package device

import (
	"github.com/hupe1980/tensorgo/tensor"
)

// Device is an opaque compute target a working batch can be relocated to.
type Device interface {
	// Name identifies the device, e.g. "cpu".
	Name() string

	// Transfer copies t into device-owned memory. The input is not mutated.
	Transfer(t *tensor.Tensor) (*tensor.Tensor, error)
}

// CPU is the default device: transfers are plain heap copies.
var CPU Device = cpuDevice{}

type cpuDevice struct{}

func (cpuDevice) Name() string { return "cpu" }

func (cpuDevice) Transfer(t *tensor.Tensor) (*tensor.Tensor, error) {
	return t.Clone(), nil
}
