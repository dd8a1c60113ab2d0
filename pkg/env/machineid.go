package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// AppID keys the protected machine ID so the raw ID never leaves the host.
const AppID = "pingpong"

// MachineID retrieves a stable ID identifying the machine, falling back to
// the host name.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id: %v", err)
	if host, herr := os.Hostname(); herr == nil {
		return host
	}
	return "unknown"
}
