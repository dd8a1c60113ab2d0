// Package mem allocates the two halves of a ring as one contiguous region.
//
// On Linux the region is an anonymous private mapping locked into memory, so
// a user-space driver handing its physical pages to a device never has them
// paged out. Elsewhere, or when locking is not permitted, it falls back to
// ordinary memory.
package mem

import (
	"errors"
)

// ErrInvalidCapacity indicates a non-positive half capacity.
var ErrInvalidCapacity = errors.New("invalid half capacity")

// Region is a contiguous allocation split into two equal halves.
type Region struct {
	Half0 []byte
	Half1 []byte

	data   []byte
	mapped bool
	locked bool
}

// Alloc allocates a region of two halves of capacity bytes each.
func Alloc(capacity int) (*Region, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	r := &Region{}
	if err := r.alloc(2 * capacity); err != nil {
		return nil, err
	}
	r.Half0, r.Half1 = r.data[:capacity:capacity], r.data[capacity:]
	return r, nil
}

// Bytes returns the whole region.
func (r *Region) Bytes() []byte {
	return r.data
}

// Mapped reports whether the region is a dedicated mapping.
func (r *Region) Mapped() bool {
	return r.mapped
}

// Locked reports whether the region is locked into memory.
func (r *Region) Locked() bool {
	return r.locked
}

// Free releases the region. The halves must not be used afterwards.
func (r *Region) Free() error {
	if r.data == nil {
		return nil
	}
	err := r.free()
	r.data, r.Half0, r.Half1 = nil, nil, nil
	r.mapped, r.locked = false, false
	return err
}
