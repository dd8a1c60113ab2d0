package dma

// HalfID selects one of the two descriptors of a channel.
type HalfID uint8

// Halves of a channel.
const (
	Primary HalfID = iota
	Alternate
)

// Other returns the opposite half.
func (h HalfID) Other() HalfID {
	return h ^ 1
}

// String implements fmt.Stringer.
func (h HalfID) String() string {
	if h == Primary {
		return "primary"
	}
	return "alternate"
}

// Owner indicates who may mutate a half.
type Owner uint8

// Owners of a half.
const (
	OwnerSoftware Owner = iota
	OwnerHardware
)

// String implements fmt.Stringer.
func (o Owner) String() string {
	if o == OwnerHardware {
		return "hardware"
	}
	return "software"
}

// HalfBuffer is a fixed-capacity region exclusively owned by either the
// hardware or the software at any instant.
type HalfBuffer struct {
	buf   []byte
	owner Owner
}

// Cap returns the capacity in bytes.
func (h *HalfBuffer) Cap() int {
	return len(h.buf)
}

// Owner returns the current owner.
func (h *HalfBuffer) Owner() Owner {
	return h.owner
}

func (h *HalfBuffer) handTo(owner Owner) {
	h.owner = owner
}
