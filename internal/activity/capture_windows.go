//go:build windows

package activity

import (
	"runtime"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetWindowsHookExW        = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx           = user32.NewProc("CallNextHookEx")
	procGetMessageW              = user32.NewProc("GetMessageW")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmKeyDown    = 0x0100
	wmSysKeyDown = 0x0104
	wmMouseMove  = 0x0200
)

type point struct {
	X int32
	Y int32
}

type msllHookStruct struct {
	Pt        point
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type msg struct {
	HWND    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

// runCapture installs the low-level keyboard and mouse hooks and pumps
// messages until process exit. Low-level hooks are delivered on the thread
// that installed them, so the goroutine stays locked to its OS thread and the
// message loop is the intentional idle state, not a leak.
func runCapture(t *Tracker) {
	runtime.LockOSThread()

	keyboardProc := windows.NewCallback(func(code, wparam, lparam uintptr) uintptr {
		if int32(code) >= 0 && (wparam == wmKeyDown || wparam == wmSysKeyDown) {
			t.recordKeyDown()
		}
		// Always hand control back to the hook chain, even on the capture
		// path, so other system-wide hooks keep working.
		ret, _, _ := procCallNextHookEx.Call(0, code, wparam, lparam)
		return ret
	})

	mouseProc := windows.NewCallback(func(code, wparam, lparam uintptr) uintptr {
		if int32(code) >= 0 && wparam == wmMouseMove {
			info := (*msllHookStruct)(unsafe.Pointer(lparam))
			t.recordMouseMove(info.Pt.X, info.Pt.Y)
		}
		ret, _, _ := procCallNextHookEx.Call(0, code, wparam, lparam)
		return ret
	})

	module, _ := windows.GetModuleHandle(nil)

	kbHook, _, kbErr := procSetWindowsHookExW.Call(whKeyboardLL, keyboardProc, uintptr(module), 0)
	if kbHook == 0 {
		t.logger.Error("failed to install keyboard hook", zap.Error(kbErr))
	}
	mouseHook, _, mouseErr := procSetWindowsHookExW.Call(whMouseLL, mouseProc, uintptr(module), 0)
	if mouseHook == 0 {
		t.logger.Error("failed to install mouse hook", zap.Error(mouseErr))
	}
	if kbHook == 0 && mouseHook == 0 {
		return
	}

	// The loop exists only to keep the hooks alive; the hook procs do all the
	// work.
	var m msg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			t.logger.Warn("input hook message loop ended")
			return
		}
	}
}

// foregroundPID maps the window holding input focus to its owning process.
func foregroundPID() (uint32, bool) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return 0, false
	}

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return 0, false
	}
	return pid, true
}
