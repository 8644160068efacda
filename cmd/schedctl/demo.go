package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"synsched/pin"
	"synsched/sched"
	"synsched/syncom"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run one of the scheduler's documented verification scenarios",
}

func init() {
	waitCmd := &cobra.Command{Use: "wait", Short: "wait() composing sleeps beyond MAXSECS", RunE: runWaitDemo}
	waitCmd.Flags().Float64("secs", 1200, "seconds to wait (the full scenario exceeds MAXSECS)")

	demoCmd.AddCommand(
		&cobra.Command{Use: "flasher", Short: "Four-LED round-robin flasher", RunE: runFlasherDemo},
		&cobra.Command{Use: "priority", Short: "Pinblock/Poller/round-robin priority ordering", RunE: runPriorityDemo},
		&cobra.Command{Use: "lateness", Short: "Timeout lateness reporting under CPU contention", RunE: runLatenessDemo},
		waitCmd,
		&cobra.Command{Use: "echo", Short: "SynCom back-to-back echo", RunE: runEchoDemo},
		&cobra.Command{Use: "timeout", Short: "SynCom liveness timeout and recovery", RunE: runTimeoutDemo},
	)
}

// runFlasherDemo runs four round-robin LED-toggle tasks at staggered
// periods, plus a task that stops the scheduler after 10s.
func runFlasherDemo(cmd *cobra.Command, args []string) error {
	sch := sched.New(false, nil)
	var toggles [4]atomic.Uint64

	for i := 0; i < 4; i++ {
		i := i
		period := 0.2 + float64(i)*0.5
		if _, err := sch.AddThread(func(y sched.Yielder) {
			for {
				y.Yield(sched.MustTimeout(period))
				toggles[i].Add(1)
			}
		}); err != nil {
			return err
		}
	}
	if _, err := sch.AddThread(func(y sched.Yielder) {
		y.Yield(sched.MustTimeout(10.0))
		_ = sch.Stop(0)
	}); err != nil {
		return err
	}

	start := time.Now()
	if err := sch.Run(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	for i := 0; i < 4; i++ {
		period := 0.2 + float64(i)*0.5
		want := uint64(10.0 / period)
		fmt.Printf("led %d: period=%.1fs toggles=%d expected~%d\n", i, period, toggles[i].Load(), want)
	}
	fmt.Printf("run() returned after %s\n", elapsed)
	return nil
}

// runPriorityDemo demonstrates that firing a Pinblock's ISR once outranks
// a Poller that is always runnable, which in turn starves a round-robin
// task for as long as the Poller keeps firing.
func runPriorityDemo(cmd *cobra.Command, args []string) error {
	sch := sched.New(false, nil)
	a, b := pin.NewWirePair()
	a.Configure(pin.Output, pin.PullNone)
	b.Configure(pin.Input, pin.PullNone)

	pb, err := sched.NewPinblock(func(fire func()) func() {
		return b.AttachInterrupt(pin.RisingEdge, fire)
	}, nil, -1)
	if err != nil {
		return err
	}

	var pinHits, pollRuns, rrRuns atomic.Uint64

	if _, err := sch.AddThread(func(y sched.Yielder) {
		for {
			tup := y.Yield(pb)
			pinHits.Add(uint64(tup.PinHits))
		}
	}); err != nil {
		return err
	}

	poller, err := sched.NewPoller(func(args ...any) uint32 { return 5 }, -1)
	if err != nil {
		return err
	}
	if _, err := sch.AddThread(func(y sched.Yielder) {
		for {
			y.Yield(poller)
			pollRuns.Add(1)
		}
	}); err != nil {
		return err
	}

	if _, err := sch.AddThread(func(y sched.Yielder) {
		for {
			y.Yield(sched.RoundRobin())
			rrRuns.Add(1)
		}
	}); err != nil {
		return err
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		a.Write(true)
	}()

	if _, err := sch.AddThread(func(y sched.Yielder) {
		y.Yield(sched.MustTimeout(0.5))
		_ = sch.Stop(0)
	}); err != nil {
		return err
	}
	// The Timeout task above is starved by the poller as well, so it never
	// reaches its Stop(0); the scheduler is stopped from outside instead.
	time.AfterFunc(600*time.Millisecond, func() { _ = sch.Stop(0) })

	if err := sch.Run(); err != nil {
		return err
	}

	fmt.Printf("pin_hits observed: %d (want >= 1)\n", pinHits.Load())
	fmt.Printf("poller ran: %d times (want many)\n", pollRuns.Load())
	fmt.Printf("round-robin ran: %d times (want 0 — documents intentional starvation)\n", rrRuns.Load())
	return nil
}

// runLatenessDemo shows a 20ms round-robin CPU burn delaying a
// Timeout(0.1) task's resume by a bounded, observable amount.
func runLatenessDemo(cmd *cobra.Command, args []string) error {
	sch := sched.New(false, nil)
	done := make(chan int64, 1)

	if _, err := sch.AddThread(func(y sched.Yielder) {
		tup := y.Yield(sched.MustTimeout(0.1))
		done <- tup.LatenessUS
		_ = sch.Stop(0)
	}); err != nil {
		return err
	}
	if _, err := sch.AddThread(func(y sched.Yielder) {
		for {
			y.Yield(sched.RoundRobin())
			burnUntil := time.Now().Add(20 * time.Millisecond)
			for time.Now().Before(burnUntil) {
			}
		}
	}); err != nil {
		return err
	}

	if err := sch.Run(); err != nil {
		return err
	}
	lateness := <-done
	fmt.Printf("task A lateness: %dus (want in [0, 25000])\n", lateness)
	return nil
}

// runWaitDemo shows a wait duration exceeding MaxSecs composed from
// bounded Timeout legs by sched.Wait rather than rejected. This genuinely
// blocks for the requested duration; pass --secs to shorten it for a
// quick sanity check instead of the default 1200s.
func runWaitDemo(cmd *cobra.Command, args []string) error {
	secs, _ := cmd.Flags().GetFloat64("secs")
	fmt.Printf("waiting %.0fs (MAXSECS=%ds) via sched.Wait...\n", secs, sched.MaxSecs)

	sch := sched.New(false, nil)
	start := time.Now()
	if _, err := sch.AddThread(func(y sched.Yielder) {
		sched.Wait(y, secs)
		_ = sch.Stop(0)
	}); err != nil {
		return err
	}
	if err := sch.Run(); err != nil {
		return err
	}
	fmt.Printf("wait(%.0f) returned after %s without raising TimeRange\n", secs, time.Since(start))
	return nil
}

// runEchoDemo wires two Link instances back to back on two independent
// Sched instances (one cooperative baton cannot drive both ends of the
// same link at once) and exchanges a value end to end.
func runEchoDemo(cmd *cobra.Command, args []string) error {
	schA := sched.New(false, nil)
	schB := sched.New(false, nil)

	ckAtoB1, ckAtoB2 := pin.NewWirePair()
	ckBtoA1, ckBtoA2 := pin.NewWirePair()
	dAtoB1, dAtoB2 := pin.NewWirePair()
	dBtoA1, dBtoA2 := pin.NewWirePair()
	for _, p := range []*pin.Loopback{ckAtoB1, ckBtoA1, dAtoB1, dBtoA1} {
		p.Configure(pin.Output, pin.PullNone)
	}
	for _, p := range []*pin.Loopback{ckAtoB2, ckBtoA2, dAtoB2, dBtoA2} {
		p.Configure(pin.Input, pin.PullNone)
	}

	linkA := syncom.New(schA, false, ckBtoA2, ckAtoB1, dBtoA2, dAtoB1, 5, false)
	linkB := syncom.New(schB, true, ckAtoB2, ckBtoA1, dAtoB2, dBtoA1, 5, false)

	result := make(chan any, 1)
	if _, err := schA.AddThread(func(y sched.Yielder) {
		for {
			y.Yield(linkA.AwaitObj())
			if v, ok, err := linkA.Get(); ok {
				if err == nil {
					result <- v
				}
				return
			}
		}
	}); err != nil {
		return err
	}
	if _, err := schB.AddThread(func(y sched.Yielder) {
		for {
			y.Yield(linkB.AwaitObj())
			v, ok, err := linkB.Get()
			if !ok || err != nil {
				continue
			}
			_ = linkB.Send(v)
		}
	}); err != nil {
		return err
	}

	if err := linkA.Start(nil, false); err != nil {
		return err
	}
	if err := linkB.Start(nil, false); err != nil {
		return err
	}
	go func() { _ = schA.Run() }()
	go func() { _ = schB.Run() }()

	sent := map[string]any{"x": 1, "y": []any{2, 3}}
	if err := linkA.Send(sent); err != nil {
		return err
	}

	select {
	case v := <-result:
		fmt.Printf("sent %#v, echoed back %#v\n", sent, v)
	case <-time.After(5 * time.Second):
		return fmt.Errorf("echo demo: timed out waiting for reply")
	}
	_ = schA.Stop(0)
	_ = schB.Stop(0)
	return nil
}

// runTimeoutDemo shows that holding a peer's clock line static past the
// timeout flips the link to TimedOut, and that Start recovers it.
func runTimeoutDemo(cmd *cobra.Command, args []string) error {
	schA := sched.New(false, nil)
	schB := sched.New(false, nil)

	ckAtoB1, ckAtoB2 := pin.NewWirePair()
	ckBtoA1, ckBtoA2 := pin.NewWirePair()
	dAtoB1, dAtoB2 := pin.NewWirePair()
	dBtoA1, dBtoA2 := pin.NewWirePair()
	for _, p := range []*pin.Loopback{ckAtoB1, ckBtoA1, dAtoB1, dBtoA1} {
		p.Configure(pin.Output, pin.PullNone)
	}
	for _, p := range []*pin.Loopback{ckAtoB2, ckBtoA2, dAtoB2, dBtoA2} {
		p.Configure(pin.Input, pin.PullNone)
	}

	linkA := syncom.New(schA, false, ckBtoA2, ckAtoB1, dBtoA2, dAtoB1, 5, false)
	linkB := syncom.New(schB, true, ckAtoB2, ckBtoA1, dAtoB2, dBtoA1, 5, false)

	const timeoutUS = int64(300_000)
	linkA.SetTimeout(timeoutUS)

	if err := linkA.Start(nil, false); err != nil {
		return err
	}
	if err := linkB.Start(nil, false); err != nil {
		return err
	}
	go func() { _ = schA.Run() }()
	go func() { _ = schB.Run() }()

	time.Sleep(50 * time.Millisecond) // let the two sides synchronise first

	_ = schB.Stop(0) // holds B's clock line static: B's task never runs again

	deadline := time.Now().Add(time.Duration(timeoutUS)*time.Microsecond + 200*time.Millisecond)
	for time.Now().Before(deadline) && linkA.Running() {
		time.Sleep(10 * time.Millisecond)
	}
	if linkA.Running() {
		return fmt.Errorf("timeout demo: link A did not time out")
	}
	fmt.Println("link A timed out as expected")

	if err := linkA.Start(nil, false); err != nil {
		return err
	}
	if !linkA.Running() {
		return fmt.Errorf("timeout demo: link A did not recover after start()")
	}
	fmt.Println("link A recovered immediately after start()")
	_ = schA.Stop(0)
	return nil
}
