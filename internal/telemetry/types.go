package telemetry

// ProcessSample is one per-poll observation of a live process. Samples are
// rebuilt from scratch on every collection pass; correlation across polls is
// by pid only.
type ProcessSample struct {
	PID           uint32
	Name          string
	CPUPercent    float64
	MemoryBytes   uint64
	MemoryMB      float64
	MemoryPercent float64
	GPUPercent    float64
	Status        string
	StartTime     int64
	ExePath       string
}

// SystemSnapshot is the host-wide resource summary for one poll.
type SystemSnapshot struct {
	CPUPercent        float64
	MemoryPercent     float64
	TotalMemoryGB     float64
	UsedMemoryGB      float64
	AvailableMemoryGB float64
	CPUCores          int
}
