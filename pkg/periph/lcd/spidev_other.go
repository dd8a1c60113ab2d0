//go:build !linux

package lcd

import "errors"

// ErrNoSPIDev indicates spidev is not available on this platform.
var ErrNoSPIDev = errors.New("spidev not supported")

// SPIDev is a half-duplex spidev character device.
type SPIDev struct{}

// OpenSPIDev is only supported on linux.
func OpenSPIDev(bus, cs int, speedHz uint32) (*SPIDev, error) {
	return nil, ErrNoSPIDev
}

// Write implements io.Writer.
func (d *SPIDev) Write(p []byte) (int, error) {
	return 0, ErrNoSPIDev
}

// Close closes the device.
func (d *SPIDev) Close() error {
	return nil
}
