// nfscollector/utility/host.go
package utility

import (
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
)

// HostSummary is what the UI shows about the machine being observed.
type HostSummary struct {
	Hostname string
	Kernel   string
	Booted   time.Time
}

func (h HostSummary) String() string {
	return fmt.Sprintf("%s (kernel %s, up since %s)", h.Hostname, h.Kernel, h.Booted.Format(time.RFC3339))
}

// DescribeHost collects hostname, kernel release and boot time.
func DescribeHost() (HostSummary, error) {
	info, err := host.Info()
	if err != nil {
		return HostSummary{}, fmt.Errorf("host info: %w", err)
	}
	return HostSummary{
		Hostname: info.Hostname,
		Kernel:   info.KernelVersion,
		Booted:   time.Unix(int64(info.BootTime), 0),
	}, nil
}

// CountNfsdThreads returns how many nfsd kernel threads are running. Zero
// means the probe will attach but see no traffic.
func CountNfsdThreads() (int, error) {
	procs, err := process.Processes()
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}
	n := 0
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			// the process exited while we were listing
			continue
		}
		if isNfsdThread(name) {
			n++
		}
	}
	return n, nil
}

func isNfsdThread(name string) bool {
	return name == "nfsd" || strings.HasPrefix(name, "nfsd/")
}
