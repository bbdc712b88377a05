package services

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type SystemSnapshot struct {
	CapturedAt        time.Time `json:"capturedAt"`
	ProcessRSSBytes   int64     `json:"processRssBytes"`
	ProcessCPULoad    float64   `json:"processCpuLoad"`
	Goroutines        int       `json:"goroutines"`
	SystemMemoryTotal int64     `json:"systemMemoryTotalBytes"`
	SystemMemoryUsed  int64     `json:"systemMemoryUsedBytes"`
	SystemCPULoad     float64   `json:"systemCpuLoad"`
	DiskTotalBytes    int64     `json:"diskTotalBytes"`
	DiskUsedBytes     int64     `json:"diskUsedBytes"`
	SocketClients     int       `json:"socketClients"`
}

// CaptureSystem samples host and process statistics. Individual probes
// that fail leave their fields zero.
func CaptureSystem(ctx context.Context, diskPath string) SystemSnapshot {
	snap := SystemSnapshot{
		CapturedAt: time.Now().UTC(),
		Goroutines: runtime.NumGoroutine(),
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil && info != nil {
			snap.ProcessRSSBytes = int64(info.RSS)
		}
		if perc, err := proc.CPUPercentWithContext(ctx); err == nil {
			snap.ProcessCPULoad = perc / 100.0
		}
	}
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.SystemMemoryTotal = int64(memStat.Total)
		snap.SystemMemoryUsed = int64(memStat.Total - memStat.Available)
	}
	if loads, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(loads) > 0 {
		snap.SystemCPULoad = loads[0] / 100.0
	}
	diskStat, err := disk.UsageWithContext(ctx, diskPath)
	if err != nil {
		diskStat, err = disk.UsageWithContext(ctx, "/")
	}
	if err == nil && diskStat != nil {
		snap.DiskTotalBytes = int64(diskStat.Total)
		snap.DiskUsedBytes = int64(diskStat.Used)
	}
	return snap
}
