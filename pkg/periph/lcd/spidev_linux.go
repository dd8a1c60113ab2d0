package lcd

import (
	"fmt"
	"unsafe"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// spidev ioctl requests, _IOW('k', nr, size).
const (
	spiIOCWrMode        = 0x40016b01
	spiIOCWrBitsPerWord = 0x40016b03
	spiIOCWrMaxSpeedHz  = 0x40046b04
)

// SPIDev is a half-duplex spidev character device.
type SPIDev struct {
	fd   int
	path string
}

// OpenSPIDev opens /dev/spidevBUS.CS in SPI mode 0 at speedHz.
func OpenSPIDev(bus, cs int, speedHz uint32) (*SPIDev, error) {
	path := fmt.Sprintf("/dev/spidev%d.%d", bus, cs)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	dev := &SPIDev{fd: fd, path: path}
	mode, bits := uint8(0), uint8(8)
	if err := dev.ioctl(spiIOCWrMode, unsafe.Pointer(&mode)); err != nil {
		dev.Close()
		return nil, err
	}
	if err := dev.ioctl(spiIOCWrBitsPerWord, unsafe.Pointer(&bits)); err != nil {
		dev.Close()
		return nil, err
	}
	if err := dev.ioctl(spiIOCWrMaxSpeedHz, unsafe.Pointer(&speedHz)); err != nil {
		dev.Close()
		return nil, err
	}
	glog.Infof("lcd: opened %s at %d Hz", path, speedHz)
	return dev, nil
}

func (d *SPIDev) ioctl(req uintptr, arg unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg)); errno != 0 {
		return fmt.Errorf("ioctl %s 0x%x: %w", d.path, req, errno)
	}
	return nil
}

// Write implements io.Writer.
func (d *SPIDev) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := unix.Write(d.fd, p[written:])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// Close closes the device.
func (d *SPIDev) Close() error {
	return unix.Close(d.fd)
}
