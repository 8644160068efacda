//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 Timer peripheral memory map: a free-running 64-bit microsecond
// counter. Reading the low word is sched.rawTicksUS's hardware source once
// wired through sched.SetHardwareClock in main.
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// hardwareTicksUS reads the low 32 bits of the RP2040's always-on 1MHz
// timer. It is passed to sched.SetHardwareClock so sched.NowUS reads real
// silicon instead of the software counter clock_tinygo.go falls back on
// for untimed targets.
func hardwareTicksUS() uint32 {
	return timerRAWL.Get()
}

// hardwareUptime reads the full 64-bit counter, retrying the high word if
// it changed between the two reads to guard against rollover mid-read.
func hardwareUptime() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}
