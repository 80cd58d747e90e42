package app

import (
	"fmt"

	"ember/kernel"
	"ember/machine"
	"ember/userland"
)

// Batch memory layout. Each task gets its own image window, user stack, and
// kernel stack; the kernel stacks are mapped without the user bit so a task
// touching them faults.
const (
	appBase      = 0x8040_0000
	appSizeLimit = 0x0002_0000

	userStackBase = 0x8080_0000
	userStackSize = 8 * 1024

	kernelStackBase = 0x8020_0000
	kernelStackSize = 8 * 1024
)

func newMachine() *machine.Machine {
	return machine.New(machine.NewMemory())
}

// loadBatch maps and loads every program, registering each as a task.
func loadBatch(k *kernel.Kernel, progs []userland.Program) error {
	mem := k.Machine().Mem()
	for i, p := range progs {
		org := uint32(appBase + i*appSizeLimit)
		img, err := p.Build(org)
		if err != nil {
			return err
		}
		if len(img) > appSizeLimit {
			return fmt.Errorf("app: %s: image %d bytes exceeds window", p.Name, len(img))
		}

		mem.Map(p.Name, org, appSizeLimit, machine.PermR|machine.PermW|machine.PermX|machine.PermU)
		if err := mem.WriteBytes(org, img, false); err != nil {
			return fmt.Errorf("app: load %s: %w", p.Name, err)
		}

		ustack := uint32(userStackBase + i*userStackSize)
		mem.Map(p.Name+".ustack", ustack, userStackSize, machine.PermR|machine.PermW|machine.PermU)

		kstack := uint32(kernelStackBase + i*kernelStackSize)
		mem.Map(p.Name+".kstack", kstack, kernelStackSize, machine.PermR|machine.PermW)

		if _, err := k.AddTask(org, ustack+userStackSize, kstack+kernelStackSize); err != nil {
			return fmt.Errorf("app: add %s: %w", p.Name, err)
		}
	}
	return nil
}
