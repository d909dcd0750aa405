package store

// WhitelistEntry is one application the user opted to monitor. Entries are
// created and mutated by the caller; the store persists them verbatim.
type WhitelistEntry struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	ExePath   *string `json:"exe_path"`
	AddedDate string  `json:"added_date"`
	IsTracked bool    `json:"is_tracked"`
}

// PerformanceSnapshot is one observation of a tracked application within a
// session, taken once per poll cycle. Fields introduced after the first
// on-disk format default to zero on load.
type PerformanceSnapshot struct {
	Timestamp           string  `json:"timestamp"`
	CPUPercent          float64 `json:"cpu_percent"`
	MemoryMB            float64 `json:"memory_mb"`
	MemoryPercent       float64 `json:"memory_percent"`
	GPUPercent          float64 `json:"gpu_percent"`
	UserActivityPercent float64 `json:"user_activity_percent"`
	IsForeground        bool    `json:"is_foreground"`
}

// Session is one continuous monitored run of a tracked application. The store
// treats PerformanceHistory as an opaque ordered sequence and does not enforce
// the one-is_current-per-app invariant; that belongs to the aggregator.
type Session struct {
	ID                 int64                 `json:"id"`
	AppName            string                `json:"app_name"`
	StartTime          string                `json:"start_time"`
	EndTime            *string               `json:"end_time"`
	DurationSeconds    int64                 `json:"duration_seconds"`
	AvgCPUPercent      float64               `json:"avg_cpu_percent"`
	AvgMemoryMB        float64               `json:"avg_memory_mb"`
	AvgGPUPercent      float64               `json:"avg_gpu_percent"`
	PeakCPUPercent     float64               `json:"peak_cpu_percent"`
	PeakMemoryMB       float64               `json:"peak_memory_mb"`
	PeakGPUPercent     float64               `json:"peak_gpu_percent"`
	IsCurrent          bool                  `json:"is_current"`
	PerformanceHistory []PerformanceSnapshot `json:"performance_history"`
}

// AppData is the persistence root: the whole document loaded at startup and
// written back wholesale on every save.
type AppData struct {
	Whitelist     []WhitelistEntry `json:"whitelist"`
	Sessions      []Session        `json:"sessions"`
	NextSessionID int64            `json:"next_session_id"`
}
