//go:build rp2350

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2350 TIMER0 lives at a different base address than RP2040's TIMER, and
// exposes raw (non-latching) high/low words directly rather than requiring
// a separate latch register.
const (
	timerBase     = 0x400B0000
	timerTimeRawH = timerBase + 0x24
	timerTimeRawL = timerBase + 0x28
)

var (
	timerRawH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTimeRawH)))
	timerRawL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTimeRawL)))
)

// hardwareTicksUS reads the low 32 bits of the RP2350's 1MHz free-running
// timer, wired into sched.SetHardwareClock from main.
func hardwareTicksUS() uint32 {
	return timerRawL.Get()
}

// hardwareUptime reads the full 64-bit counter with the same
// read-high/read-low/read-high rollover guard RP2040's clock.go uses.
func hardwareUptime() uint64 {
	for {
		high1 := timerRawH.Get()
		low := timerRawL.Get()
		high2 := timerRawH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}
