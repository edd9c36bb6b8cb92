// Package heater is the sample automaton program shipped with automat: a PID
// temperature controller driven by a ramp/hold/cool programmer, the classic
// two-automaton PLC exercise. It is a consumer of internal/sched, not part of
// the scheduler core.
package heater

import (
	"time"

	"automat/internal/sched"
)

// Input is the process image read by the heater automatons.
type Input struct {
	Temperature float64 `json:"temperature"`
}

// Output is the process image they publish.
type Output struct {
	Power   float64 `json:"power"`             // commanded heater power, 0..100
	Desired float64 `json:"desired"`           // controller setpoint
	Program string  `json:"program,omitempty"` // programmer state name
}

// ControllerConfig holds the PID gains. Zero fields fall back to the
// reference program's constants.
type ControllerConfig struct {
	Proportional float64
	Integral     float64
	Differential float64
}

// Controller is a PID automaton commanding heater power toward a setpoint.
// The setpoint is driven by the Programmer; power is clamped to 0..100 and
// the integral term only accumulates while the command is unclamped.
type Controller struct {
	sched.TimedObject

	proportional float64
	integral     float64
	differential float64

	setpoint      float64
	integralTotal float64
	previous      float64
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Proportional == 0 {
		cfg.Proportional = 0.3
	}
	if cfg.Integral == 0 {
		cfg.Integral = 0.02
	}
	if cfg.Differential == 0 {
		cfg.Differential = -0.2
	}
	return &Controller{
		proportional: cfg.Proportional,
		integral:     cfg.Integral,
		differential: cfg.Differential,
	}
}

// SetPoint sets the desired temperature. Call it only from task context (the
// Programmer does); it is not safe from other goroutines.
func (c *Controller) SetPoint(v float64) { c.setpoint = v }

func (c *Controller) Tick(in Input, out *Output) {
	diff := c.setpoint - in.Temperature
	needed := diff*c.proportional + c.integral*c.integralTotal + c.differential*(diff-c.previous)

	switch {
	case needed < 0:
		out.Power = 0
	case needed > 100:
		out.Power = 100
	default:
		out.Power = needed
		c.integralTotal += diff
	}
	c.previous = diff
	out.Desired = c.setpoint
}

// ProgramState is the programmer's discrete state.
type ProgramState uint8

const (
	Starting ProgramState = iota
	Heating
	Hot
	Cooling
	Cool
)

func (s ProgramState) String() string {
	switch s {
	case Starting:
		return "starting"
	case Heating:
		return "heating"
	case Hot:
		return "hot"
	case Cooling:
		return "cooling"
	case Cool:
		return "cool"
	default:
		return "unknown"
	}
}

// ProgrammerConfig parametrizes the temperature program. Zero fields fall
// back to the reference program's constants.
type ProgrammerConfig struct {
	Ramp     float64       // degrees per millisecond while heating/cooling
	Max      float64       // hold temperature
	HoldTime time.Duration // how long to stay at Max
	Finish   float64       // final temperature after cooling
}

// Programmer ramps the controller's setpoint up to Max, holds it, and ramps
// back down: Starting -> Heating -> Hot -> Cooling -> Cool.
type Programmer struct {
	sched.StateMachine[ProgramState]

	cfg        ProgrammerConfig
	controller *Controller
}

func NewProgrammer(cfg ProgrammerConfig, controller *Controller) *Programmer {
	if cfg.Ramp == 0 {
		cfg.Ramp = 0.005
	}
	if cfg.Max == 0 {
		cfg.Max = 100
	}
	if cfg.HoldTime == 0 {
		cfg.HoldTime = 10 * time.Second
	}
	if cfg.Finish == 0 {
		cfg.Finish = 20
	}
	// Zero value of ProgramState is Starting; no explicit SetState needed.
	return &Programmer{cfg: cfg, controller: controller}
}

func (p *Programmer) Tick(in Input, out *Output) {
	switch p.State() {
	case Starting:
		p.SetState(Heating)

	case Heating:
		wanted := float64(p.TimeInState().Milliseconds()) * p.cfg.Ramp
		if wanted > p.cfg.Max {
			wanted = p.cfg.Max
			p.SetState(Hot)
		}
		p.controller.SetPoint(wanted)

	case Hot:
		p.controller.SetPoint(p.cfg.Max)
		if p.TimeInState() > p.cfg.HoldTime {
			p.SetState(Cooling)
		}

	case Cooling:
		wanted := p.cfg.Max - float64(p.TimeInState().Milliseconds())*p.cfg.Ramp
		if wanted < p.cfg.Finish {
			wanted = p.cfg.Finish
			p.SetState(Cool)
		}
		p.controller.SetPoint(wanted)

	case Cool:
		// Program finished; keep holding the finish temperature.
	}
	out.Program = p.State().String()
}

// Plant is a crude first-order thermal model used by the demo daemon and the
// tests to close the loop: each step pulls the temperature toward ambient
// and adds the commanded power.
type Plant struct {
	Ambient float64
	Loss    float64

	temperature float64
}

func NewPlant(ambient float64) *Plant {
	return &Plant{Ambient: ambient, Loss: 0.95, temperature: ambient}
}

// Step advances the model by one period under the given power and returns
// the new temperature.
func (p *Plant) Step(power float64) float64 {
	p.temperature = p.Ambient + (p.temperature-p.Ambient)*p.Loss + power
	return p.temperature
}

// Temperature returns the current model temperature.
func (p *Plant) Temperature() float64 { return p.temperature }
