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

// SystemStats is the host snapshot served on the admin dashboard.
type SystemStats struct {
	CapturedAt        time.Time `json:"capturedAt"`
	Uptime            string    `json:"uptime"`
	Goroutines        int       `json:"goroutines"`
	ProcessRSSBytes   int64     `json:"processRssBytes"`
	ProcessCPUPercent float64   `json:"processCpuPercent"`
	SystemCPUPercent  float64   `json:"systemCpuPercent"`
	MemoryTotalBytes  int64     `json:"memoryTotalBytes"`
	MemoryUsedBytes   int64     `json:"memoryUsedBytes"`
	DiskTotalBytes    int64     `json:"diskTotalBytes"`
	DiskUsedBytes     int64     `json:"diskUsedBytes"`
}

type SystemService struct {
	startedAt time.Time
	diskPath  string
}

func NewSystemService(startedAt time.Time) *SystemService {
	return &SystemService{startedAt: startedAt, diskPath: "/"}
}

// Snapshot collects host and process stats. Individual readings that fail are left at zero.
func (s *SystemService) Snapshot(ctx context.Context) SystemStats {
	stats := SystemStats{
		CapturedAt: time.Now().UTC(),
		Uptime:     time.Since(s.startedAt).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfoWithContext(ctx); err == nil && rss != nil {
			stats.ProcessRSSBytes = int64(rss.RSS)
		}
		if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
			stats.ProcessCPUPercent = pct
		}
	}
	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		stats.SystemCPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryTotalBytes = int64(vm.Total)
		stats.MemoryUsedBytes = int64(vm.Total - vm.Available)
	}
	if du, err := disk.UsageWithContext(ctx, s.diskPath); err == nil {
		stats.DiskTotalBytes = int64(du.Total)
		stats.DiskUsedBytes = int64(du.Used)
	}
	return stats
}
