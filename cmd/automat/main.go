// Command automat runs the sample heater control loop as a daemon: the PID
// controller and the temperature programmer on the scheduler, a simulated
// plant closing the loop, and optional sqlite tick history.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"automat/internal/config"
	"automat/internal/eventbus"
	"automat/internal/heater"
	"automat/internal/history"
	"automat/internal/sched"
	logx "automat/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log := logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.ConsoleEnabled(),
		File:    logx.FileConfig{Enabled: cfg.Log.File.Enabled, Path: cfg.Log.File.Path},
	})
	defer log.Close()

	basePeriod, err := config.DurationOrDefault("loop.base_period", cfg.Loop.BasePeriod, 100*time.Millisecond)
	if err != nil {
		return err
	}
	ctrlPeriod, err := config.DurationOrDefault("heater.controller_period", cfg.Heater.ControllerPeriod, 200*time.Millisecond)
	if err != nil {
		return err
	}
	progPeriod, err := config.DurationOrDefault("heater.programmer_period", cfg.Heater.ProgrammerPeriod, 500*time.Millisecond)
	if err != nil {
		return err
	}
	holdTime, err := config.DurationOrDefault("heater.hold_time", cfg.Heater.HoldTime, 10*time.Second)
	if err != nil {
		return err
	}

	controller := heater.NewController(heater.ControllerConfig{
		Proportional: cfg.Heater.Proportional,
		Integral:     cfg.Heater.Integral,
		Differential: cfg.Heater.Differential,
	})
	programmer := heater.NewProgrammer(heater.ProgrammerConfig{
		Ramp:     cfg.Heater.Ramp,
		Max:      cfg.Heater.Max,
		HoldTime: holdTime,
		Finish:   cfg.Heater.Finish,
	}, controller)

	const ambient = 20.0
	mgr, err := sched.New(
		heater.Input{Temperature: ambient},
		heater.Output{},
		sched.Config{BasePeriod: basePeriod},
		log.With(logx.String("component", "sched")),
	)
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.Add(ctrlPeriod, controller); err != nil {
		return err
	}
	if err := mgr.Add(progPeriod, programmer); err != nil {
		return err
	}

	bus := eventbus.New()
	if err := mgr.SetOutputTrigger(func(out heater.Output) {
		bus.Publish(eventbus.Event{Type: eventbus.TypeTickPublished, Seq: mgr.Ticks(), Data: out})
	}); err != nil {
		return err
	}

	if cfg.History.Enabled {
		store, err := openHistory(cfg.History, log.With(logx.String("component", "history")))
		if err != nil {
			return err
		}
		defer store.Close()

		events, unsub := bus.Subscribe(cfg.History.Buffer)
		defer unsub()
		go recordTicks(ctx, store, events, log)
	}

	// The simulated plant closes the loop: every published tick it steps the
	// thermal model under the commanded power and writes the resulting
	// temperature back through the input guard.
	plantEvents, unsubPlant := bus.Subscribe(8)
	defer unsubPlant()
	go runPlant(ctx, mgr, heater.NewPlant(ambient), plantEvents, log)

	if err := mgr.Unpause(); err != nil {
		return err
	}
	bus.Publish(eventbus.Event{Type: eventbus.TypeLoopResumed, Seq: mgr.Ticks()})
	log.Info("automat running",
		logx.Duration("base_period", basePeriod),
		logx.Duration("controller_period", ctrlPeriod),
		logx.Duration("programmer_period", progPeriod))

	notifyReady(log)
	go watchdogLoop(ctx, log)

	<-ctx.Done()
	mgr.Pause()
	bus.Publish(eventbus.Event{Type: eventbus.TypeLoopPaused, Seq: mgr.Ticks()})
	log.Info("automat stopped")
	return nil
}

func openHistory(cfg config.HistoryConfig, log logx.Logger) (*history.Store, error) {
	retention, err := config.DurationOrDefault("history.retention", cfg.Retention, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	path := cfg.Path
	if path == "" {
		path = "./automat-history.db"
	}
	return history.Open(history.Config{
		Path:      path,
		Retention: retention,
		PruneSpec: cfg.PruneSpec,
	}, log)
}

func recordTicks(ctx context.Context, store *history.Store, events <-chan eventbus.Event, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != eventbus.TypeTickPublished {
				continue
			}
			payload, err := json.Marshal(ev.Data)
			if err != nil {
				log.Warn("history encode failed", logx.Err(err))
				continue
			}
			c, cancel := context.WithTimeout(context.Background(), time.Second)
			err = store.Append(c, history.Record{Seq: ev.Seq, At: ev.Time, Payload: payload})
			cancel()
			if err != nil {
				log.Warn("history append failed", logx.Err(err))
			}
		}
	}
}

func runPlant(ctx context.Context, mgr *sched.Manager[heater.Input, heater.Output], plant *heater.Plant, events <-chan eventbus.Event, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			out, ok := ev.Data.(heater.Output)
			if !ok {
				continue
			}
			temp := plant.Step(out.Power)

			in := mgr.Input()
			in.Value().Temperature = temp
			in.Release()

			log.Debug("plant stepped",
				logx.Uint64("tick", ev.Seq),
				logx.Float64("power", out.Power),
				logx.Float64("desired", out.Desired),
				logx.Float64("temperature", temp),
				logx.String("program", out.Program))
		}
	}
}

func notifyReady(log logx.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
		return
	}
	if sent {
		log.Debug("systemd notified ready")
	}
}

// watchdogLoop pings the systemd watchdog at half its interval when one is
// configured for the unit. No-op otherwise.
func watchdogLoop(ctx context.Context, log logx.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Warn("watchdog ping failed", logx.Err(err))
			}
		}
	}
}
