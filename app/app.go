// Package app boots the batch system on a HAL: it assembles and loads the
// user programs, wires the kernel's collaborators, and steps the machine
// from the platform's tick loop.
package app

import (
	"errors"

	"ember/hal"
	"ember/kernel"
	"ember/userland"
)

// Config tunes the boot.
type Config struct {
	// StepBudget is the number of user instructions per tick.
	StepBudget int
	// Programs overrides the default batch.
	Programs []userland.Program
}

const defaultStepBudget = 2000

// New boots the default batch and returns the per-tick step function.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, Config{})
}

// NewWithConfig boots the batch and returns the per-tick step function.
// The step function returns kernel.ErrHalted once every task has finished.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	if cfg.StepBudget <= 0 {
		cfg.StepBudget = defaultStepBudget
	}
	progs := cfg.Programs
	if progs == nil {
		progs = userland.Programs()
	}

	log := h.Logger()
	cons := newConsole(h.Display(), log)

	var ticks uint64
	k := kernel.New(newMachine(), kernel.Config{
		Log:     log,
		Console: cons,
		Now:     func() uint64 { return ticks },
	})

	boot := func() error {
		if err := loadBatch(k, progs); err != nil {
			return err
		}
		return k.Start()
	}
	bootErr := boot()

	halted := false
	return func() error {
		if bootErr != nil {
			return bootErr
		}

		// Drain the tick stream; the count is the kernel's time base.
		for {
			select {
			case <-h.Time().Ticks():
				ticks++
				continue
			default:
			}
			break
		}

		if halted {
			cons.flush()
			return kernel.ErrHalted
		}

		err := k.StepN(cfg.StepBudget)
		cons.flush()
		if errors.Is(err, kernel.ErrHalted) {
			halted = true
			return kernel.ErrHalted
		}
		return err
	}
}

// Run drives the step function from the HAL tick stream directly. It is the
// entry point on targets without a host runner.
func Run(h hal.HAL) {
	step := New(h)
	ticks := h.Time().Ticks()
	for {
		<-ticks
		if err := step(); err != nil {
			if !errors.Is(err, kernel.ErrHalted) {
				h.Logger().WriteLineString("boot: " + err.Error())
			}
			return
		}
	}
}
