package mem

import (
	"fmt"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

func (r *Region) alloc(size int) error {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	r.data, r.mapped = data, true
	if err := unix.Mlock(data); err != nil {
		glog.Warningf("mem: mlock %d bytes: %v", size, err)
		return nil
	}
	r.locked = true
	return nil
}

func (r *Region) free() error {
	if !r.mapped {
		return nil
	}
	if r.locked {
		if err := unix.Munlock(r.data); err != nil {
			glog.Warningf("mem: munlock: %v", err)
		}
	}
	return unix.Munmap(r.data)
}
