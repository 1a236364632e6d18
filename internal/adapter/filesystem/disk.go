package filesystem

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/vertextoedge/cloudbox/internal/port"
)

// GetDiskUsage returns disk usage for the volume holding dir.
// Free counts only the space available to the current user.
func (m *Manager) GetDiskUsage(dir string) (*port.DiskUsage, error) {
	stat, err := disk.Usage(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}

	return &port.DiskUsage{
		Total:   stat.Total,
		Used:    stat.Used,
		Free:    stat.Free,
		UsedPct: stat.UsedPercent,
	}, nil
}
