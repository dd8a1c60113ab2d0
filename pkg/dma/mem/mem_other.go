//go:build !linux

package mem

func (r *Region) alloc(size int) error {
	r.data = make([]byte, size)
	return nil
}

func (r *Region) free() error {
	return nil
}
