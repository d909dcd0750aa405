//go:build windows

package telemetry

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	psapi                    = windows.NewLazySystemDLL("psapi.dll")
	procGetProcessMemoryInfo = psapi.NewProc("GetProcessMemoryInfo")
)

const processVMRead = 0x0010

// processMemoryCountersEx mirrors PROCESS_MEMORY_COUNTERS_EX; PrivateUsage is
// the private working set Task Manager shows in its Memory column.
type processMemoryCountersEx struct {
	CB                         uint32
	PageFaultCount             uint32
	PeakWorkingSetSize         uintptr
	WorkingSetSize             uintptr
	QuotaPeakPagedPoolUsage    uintptr
	QuotaPagedPoolUsage        uintptr
	QuotaPeakNonPagedPoolUsage uintptr
	QuotaNonPagedPoolUsage     uintptr
	PagefileUsage              uintptr
	PeakPagefileUsage          uintptr
	PrivateUsage               uintptr
}

// resolveMemory prefers the private-working-set figure from the OS accounting
// API; any failure (process exited, access denied) degrades silently to the
// fallback the caller already has. The process handle never outlives the
// call.
func resolveMemory(pid uint32, fallback uint64) uint64 {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|processVMRead, false, pid)
	if err != nil {
		return fallback
	}
	defer windows.CloseHandle(handle)

	var counters processMemoryCountersEx
	counters.CB = uint32(unsafe.Sizeof(counters))

	ret, _, _ := procGetProcessMemoryInfo.Call(
		uintptr(handle),
		uintptr(unsafe.Pointer(&counters)),
		uintptr(counters.CB),
	)
	if ret == 0 {
		return fallback
	}
	return uint64(counters.PrivateUsage)
}
