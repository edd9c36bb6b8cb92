package heater

import (
	"math"
	"sync"
	"testing"
	"time"

	"automat/internal/sched"
	logx "automat/pkg/logx"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestControllerPID(t *testing.T) {
	t.Parallel()
	c := NewController(ControllerConfig{})
	c.SetPoint(60)

	var out Output
	c.Tick(Input{Temperature: 20}, &out)
	// diff = 40: P 0.3*40 = 12, I 0, D -0.2*(40-0) = -8
	if !almost(out.Power, 4) {
		t.Fatalf("first power = %v, want 4", out.Power)
	}
	if !almost(out.Desired, 60) {
		t.Fatalf("desired = %v, want 60", out.Desired)
	}

	c.Tick(Input{Temperature: 20}, &out)
	// diff unchanged: P 12, I 0.02*40 = 0.8, D 0
	if !almost(out.Power, 12.8) {
		t.Fatalf("second power = %v, want 12.8", out.Power)
	}
}

func TestControllerClamping(t *testing.T) {
	t.Parallel()
	t.Run("high clamp stops integration", func(t *testing.T) {
		t.Parallel()
		c := NewController(ControllerConfig{})
		c.SetPoint(10000)
		var out Output
		c.Tick(Input{Temperature: 20}, &out)
		if out.Power != 100 {
			t.Fatalf("power = %v, want clamped 100", out.Power)
		}
		// The integral term must not have accumulated: a second clamped
		// tick yields the pure P response.
		c.Tick(Input{Temperature: 20}, &out)
		if out.Power != 100 {
			t.Fatalf("power = %v, want clamped 100", out.Power)
		}
	})
	t.Run("low clamp", func(t *testing.T) {
		t.Parallel()
		c := NewController(ControllerConfig{})
		c.SetPoint(0)
		var out Output
		c.Tick(Input{Temperature: 50}, &out)
		if out.Power != 0 {
			t.Fatalf("power = %v, want clamped 0", out.Power)
		}
	})
}

func TestPlantModel(t *testing.T) {
	t.Parallel()
	p := NewPlant(20)
	if got := p.Step(0); !almost(got, 20) {
		t.Fatalf("idle step = %v, want 20", got)
	}
	if got := p.Step(10); !almost(got, 30) {
		t.Fatalf("heated step = %v, want 30", got)
	}
	if got := p.Step(0); !almost(got, 29.5) {
		t.Fatalf("cooling step = %v, want 29.5", got)
	}
}

// ---- program progression on the scheduler ----

type manualTrigger struct {
	fire func()
}

func (t *manualTrigger) Resume()      {}
func (t *manualTrigger) Pause()       {}
func (t *manualTrigger) Close() error { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestProgrammerRunsTheFullProgram(t *testing.T) {
	t.Parallel()
	const base = 100 * time.Millisecond

	mt := &manualTrigger{}
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m, err := sched.New(Input{Temperature: 20}, Output{}, sched.Config{
		BasePeriod: base,
		Trigger: func(period time.Duration, fire func(), startPaused bool) sched.Trigger {
			mt.fire = fire
			return mt
		},
		Now: clk.Now,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("sched.New: %v", err)
	}

	controller := NewController(ControllerConfig{})
	programmer := NewProgrammer(ProgrammerConfig{
		Ramp:     0.01, // 1 degree per 100ms tick
		Max:      10,
		HoldTime: 300 * time.Millisecond,
		Finish:   2,
	}, controller)

	if err := m.Add(base, controller); err != nil {
		t.Fatalf("Add controller: %v", err)
	}
	if err := m.Add(base, programmer); err != nil {
		t.Fatalf("Add programmer: %v", err)
	}
	if err := m.Unpause(); err != nil {
		t.Fatalf("Unpause: %v", err)
	}

	step := func(n int) {
		for i := 0; i < n; i++ {
			clk.Advance(base)
			mt.fire()
		}
	}

	step(1)
	if got := programmer.State(); got != Heating {
		t.Fatalf("after tick 0: state = %v, want Heating", got)
	}

	// Ramp: wanted = timeInState(ms) * 0.01 exceeds Max=10 after 1.1s.
	step(11)
	if got := programmer.State(); got != Hot {
		t.Fatalf("after tick 11: state = %v, want Hot", got)
	}

	// Hold: leaves Hot once timeInState exceeds 300ms.
	step(4)
	if got := programmer.State(); got != Cooling {
		t.Fatalf("after tick 15: state = %v, want Cooling", got)
	}

	// Cool-down ramp back to Finish=2.
	step(9)
	if got := programmer.State(); got != Cool {
		t.Fatalf("after tick 24: state = %v, want Cool", got)
	}

	step(1)
	out := m.Output()
	got := *out.Value()
	out.Release()
	if !almost(got.Desired, 2) {
		t.Fatalf("final desired = %v, want 2", got.Desired)
	}
	if got.Program != "cool" {
		t.Fatalf("final program = %q, want cool", got.Program)
	}
}
