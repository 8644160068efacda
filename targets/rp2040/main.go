//go:build rp2040

// Command rp2040 is the on-device entrypoint for an RP2040 (Raspberry Pi
// Pico) acting as one end of a SynCom link: it wires the hardware timer,
// four link GPIOs, a button-driven Pinblock demo, and the scheduler's
// built-in heartbeat LED, then hands control to sched.Run for good.
package main

import (
	"time"

	"machine"

	"synsched/pin"
	"synsched/sched"
	"synsched/syncom"
)

func main() {
	sched.SetHardwareClock(hardwareTicksUS)

	led := pin.NewTinyGo(machine.LED)
	led.Configure(pin.Output, pin.PullNone)

	ckin := pin.NewTinyGo(machine.GPIO2)
	ckout := pin.NewTinyGo(machine.GPIO3)
	din := pin.NewTinyGo(machine.GPIO4)
	dout := pin.NewTinyGo(machine.GPIO5)
	ckout.Configure(pin.Output, pin.PullNone)
	dout.Configure(pin.Output, pin.PullNone)
	ckin.Configure(pin.Input, pin.PullDown)
	din.Configure(pin.Input, pin.PullDown)

	button := pin.NewTinyGo(machine.GPIO6)
	button.Configure(pin.Input, pin.PullUp)

	sch := sched.New(true, led)

	link := syncom.New(sch, false, ckin, ckout, din, dout, 5, false)
	link.SetTimeout(2_000_000)
	if err := link.Start(nil, false); err != nil {
		panic(err)
	}

	pb, err := sched.NewPinblock(func(fire func()) func() {
		return button.AttachInterrupt(pin.FallingEdge, fire)
	}, nil, -1)
	if err != nil {
		panic(err)
	}
	if _, err := sch.AddThread(func(y sched.Yielder) {
		for {
			tup := y.Yield(pb)
			_ = link.Send(map[string]any{"button_hits": tup.PinHits})
		}
	}); err != nil {
		panic(err)
	}

	if _, err := sch.AddThread(func(y sched.Yielder) {
		for {
			y.Yield(link.AwaitObj())
			if !link.Running() {
				_ = link.Start(nil, false)
				continue
			}
			for {
				if _, ok, _ := link.Get(); !ok {
					break
				}
			}
		}
	}); err != nil {
		panic(err)
	}

	if err := sch.Run(); err != nil {
		panic(err)
	}
	for {
		time.Sleep(time.Hour)
	}
}
