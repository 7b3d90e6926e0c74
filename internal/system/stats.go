package system

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a snapshot of process and host resource use.
type Usage struct {
	RSSBytes       uint64
	CPUPercent     float64
	HostMemPercent float64
}

// SampleUsage reads the current process RSS and CPU share and host memory use.
func SampleUsage() (Usage, error) {
	var u Usage
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return u, fmt.Errorf("open process: %w", err)
	}
	if mi, err := p.MemoryInfo(); err == nil {
		u.RSSBytes = mi.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		u.CPUPercent = cpu
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		u.HostMemPercent = vm.UsedPercent
	}
	return u, nil
}

// AppendBenchmark appends one line to the benchmark log at path.
func AppendBenchmark(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, line)
	return err
}
