package asm

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func word(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[i*4:])
}

func assemble(t *testing.T, src string) []byte {
	t.Helper()
	img, err := Assemble(src, 0x1000)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return img
}

func TestSingleInstructions(t *testing.T) {
	cases := []struct {
		src  string
		want uint32
	}{
		{"addi x1, x0, 5", 0x00500093},
		{"addi ra, zero, 5", 0x00500093}, // ABI names alias x-names
		{"add a0, a1, a2", 0x00c58533},
		{"sub a0, a1, a2", 0x40c58533},
		{"andi t0, t0, 15", 0x00f2f293},
		{"sw t1, 0(t0)", 0x0062a023},
		{"lw a0, 8(sp)", 0x00812503},
		{"lbu a0, (a1)", 0x0005c503}, // empty offset reads as 0
		{"beq a0, a1, 8", 0x00b50463},
		{"jal x0, -4", 0xffdff06f},
		{"jal ra, 8", 0x008000ef},
		{"jalr x0, 0(ra)", 0x00008067},
		{"lui t0, 0x80400", 0x804002b7},
		{"auipc t0, 1", 0x00001297},
		{"slli a0, a0, 3", 0x00351513},
		{"srai a0, a0, 1", 0x40155513},
		{"ecall", 0x00000073},
		{"ebreak", 0x00100073},
		{"unimp", 0x00000000},
		{"nop", 0x00000013},
		{"ret", 0x00008067},
		{"mv a0, a1", 0x00058513},
	}
	for _, c := range cases {
		img := assemble(t, c.src)
		if len(img) != 4 {
			t.Errorf("%q: image %d bytes, want 4", c.src, len(img))
			continue
		}
		if got := word(img, 0); got != c.want {
			t.Errorf("%q = %#08x, want %#08x", c.src, got, c.want)
		}
	}
}

func TestLiExpandsToLuiAddi(t *testing.T) {
	img := assemble(t, "li a0, 1")
	if len(img) != 8 {
		t.Fatalf("li image %d bytes, want 8", len(img))
	}
	if got := word(img, 0); got != 0x00000537 {
		t.Errorf("lui half = %#08x, want 0x00000537", got)
	}
	if got := word(img, 1); got != 0x00150513 {
		t.Errorf("addi half = %#08x, want 0x00150513", got)
	}

	// A value whose low half is negative must round the upper half up.
	img = assemble(t, "li t0, 0x80400fff")
	if got := word(img, 0); got != 0x804012b7 { // hi = 0x80401
		t.Errorf("lui half = %#08x, want 0x804012b7", got)
	}
	if got := word(img, 1); got != 0xfff28293 { // lo = -1
		t.Errorf("addi half = %#08x, want 0xfff28293", got)
	}
}

func TestLabelsAndBranches(t *testing.T) {
	img := assemble(t, `
start:
	addi t0, x0, 0
loop:
	addi t0, t0, 1
	jal x0, loop
	jal x0, start
`)
	if len(img) != 16 {
		t.Fatalf("image %d bytes, want 16", len(img))
	}
	if got := word(img, 2); got != 0xffdff06f { // loop is -4 from here
		t.Errorf("backward jal = %#08x, want 0xffdff06f", got)
	}
	if got := word(img, 3); got != 0xff5ff06f { // start is -12 from here
		t.Errorf("far jal = %#08x, want 0xff5ff06f", got)
	}
}

func TestLaResolvesLabelAddress(t *testing.T) {
	img, err := Assemble(`
	la a1, msg
	ecall
msg: .ascii "hi"
`, 0x80400000)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	// msg sits after two instruction words plus the la pair: 0x80400000+12.
	if got := word(img, 0); got != 0x804005b7 { // lui a1, 0x80400
		t.Errorf("lui half = %#08x, want 0x804005b7", got)
	}
	if got := word(img, 1); got != 0x00c58593 { // addi a1, a1, 12
		t.Errorf("addi half = %#08x, want 0x00c58593", got)
	}
}

func TestDataDirectives(t *testing.T) {
	img := assemble(t, `
msg: .ascii "ab\n"
.align
val: .word 0x11223344 7
pad: .zero 3
.byte 1 2
`)
	want := []byte{
		'a', 'b', '\n', 0, // ascii + align pad
		0x44, 0x33, 0x22, 0x11,
		7, 0, 0, 0,
		0, 0, 0,
		1, 2,
	}
	if !bytes.Equal(img, want) {
		t.Errorf("image = % x, want % x", img, want)
	}
}

func TestAsciiKeepsEscapesAndComments(t *testing.T) {
	img := assemble(t, `msg: .ascii "a#b\t\n" # trailing comment`)
	if want := []byte("a#b\t\n"); !bytes.Equal(img, want) {
		t.Errorf("payload = %q, want %q", img, want)
	}
}

func TestCommentsAndCommas(t *testing.T) {
	img := assemble(t, `
	# a full-line comment
	addi x1, x0, 5   # trailing comment
`)
	if len(img) != 4 || word(img, 0) != 0x00500093 {
		t.Errorf("image = % x, want the single addi word", img)
	}
}

func TestInstructionAfterOddDataAligns(t *testing.T) {
	img := assemble(t, `
.ascii "abc"
	ecall
`)
	if len(img) != 8 {
		t.Fatalf("image %d bytes, want 8", len(img))
	}
	if got := word(img, 1); got != 0x00000073 {
		t.Errorf("aligned word = %#08x, want ecall", got)
	}
}

func TestErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unknown mnemonic", "frobnicate a0"},
		{"unknown register", "addi q7, x0, 1"},
		{"duplicate label", "a:\na:\n"},
		{"immediate overflow", "addi x1, x0, 5000"},
		{"bad shift", "slli a0, a0, 33"},
		{"bad operand count", "add a0, a1"},
		{"undefined label", "jal x0, nowhere"},
		{"bad ascii", `.ascii hello`},
	}
	for _, c := range cases {
		if _, err := Assemble(c.src, 0x1000); err == nil {
			t.Errorf("%s: assembled without error", c.name)
		}
	}
}

func TestErrorNamesLine(t *testing.T) {
	_, err := Assemble("nop\nbogus\n", 0x1000)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %v, want a line 2 reference", err)
	}
}
