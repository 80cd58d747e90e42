// Package userland holds the user-mode programs the batch runs. They are
// written in the assembler subset and built at boot; each one exercises a
// different path through the kernel (plain output, yielding, info queries,
// and the two fault kills).
package userland

import (
	"fmt"

	"ember/asm"
)

// Program is one loadable user program.
type Program struct {
	Name   string
	Source string
}

// Build assembles the program for the given load address.
func (p Program) Build(origin uint32) ([]byte, error) {
	img, err := asm.Assemble(p.Source, origin)
	if err != nil {
		return nil, fmt.Errorf("userland: %s: %w", p.Name, err)
	}
	return img, nil
}

// Programs returns the default batch, in load order.
func Programs() []Program {
	return []Program{greet, count, probe, wild, rogue}
}

// greet writes three lines, yielding in between so the batch interleaves.
var greet = Program{
	Name: "greet",
	Source: `
start:
	la a1, msg_a
	li a2, 8
	jal ra, put
	li a7, 124          # yield
	ecall
	la a1, msg_b
	li a2, 8
	jal ra, put
	li a7, 124
	ecall
	la a1, msg_c
	li a2, 8
	jal ra, put
	li a0, 0
	li a7, 93           # exit(0)
	ecall

put:
	li a0, 1
	li a7, 64           # write(1, a1, a2)
	ecall
	ret

msg_a: .ascii "greet A\n"
msg_b: .ascii "greet B\n"
msg_c: .ascii "greet C\n"
`,
}

// count sums 1..10 into a data word, yielding each round, then reports.
var count = Program{
	Name: "count",
	Source: `
start:
	li t0, 0            # acc
	li t1, 1            # i
	li t2, 11
loop:
	add t0, t0, t1
	addi t1, t1, 1
	li a7, 124          # yield
	ecall
	blt t1, t2, loop
	la t3, acc
	sw t0, 0(t3)
	li a0, 1
	la a1, msg
	li a2, 11
	li a7, 64
	ecall
	li a0, 0
	li a7, 93
	ecall

msg: .ascii "count done\n"
.align
acc: .word 0
`,
}

// probe calls get_time and task_info into its own buffers, then exits with
// the get_time result as its code.
var probe = Program{
	Name: "probe",
	Source: `
start:
	la a0, tv
	li a1, 0
	li a7, 169          # get_time(&tv)
	ecall
	mv s0, a0
	la a0, ti
	li a7, 410          # task_info(&ti)
	ecall
	li a0, 1
	la a1, msg
	li a2, 8
	li a7, 64
	ecall
	mv a0, s0
	li a7, 93
	ecall

msg: .ascii "probed!\n"
.align
tv: .zero 8
ti: .zero 2008
`,
}

// wild writes a line and then stores through a null pointer. The kernel
// kills it with a store-fault diagnostic.
var wild = Program{
	Name: "wild",
	Source: `
start:
	li a0, 1
	la a1, msg
	li a2, 14
	li a7, 64
	ecall
	li t0, 0
	li t1, 1
	sw t1, 0(t0)        # null store, never returns
	li a0, 0
	li a7, 93
	ecall

msg: .ascii "going wild...\n"
`,
}

// rogue executes an all-zero word, the canonical illegal instruction.
var rogue = Program{
	Name: "rogue",
	Source: `
start:
	li a0, 1
	la a1, msg
	li a2, 9
	li a7, 64
	ecall
	unimp               # illegal instruction, never returns
	li a0, 0
	li a7, 93
	ecall

msg: .ascii "rogue up\n"
`,
}
