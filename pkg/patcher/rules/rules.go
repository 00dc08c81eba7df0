// Package rules holds the instruction rules and the static patch tables for
// the system processes syspatch knows about.
package rules

import (
	"github.com/blacktop/syspatch/pkg/arm64"
	"github.com/blacktop/syspatch/pkg/pattern"
)

// fixed is the shared shape of rules that overwrite the instruction with one
// constant word and consider it applied when that word is already there.
type fixed struct {
	word uint32
}

func (f fixed) Patch(uint32) pattern.Bytes { return pattern.FromUint32(f.word) }

func (f fixed) Applied(site []byte, _ uint32) bool {
	return pattern.FromUint32(f.word).Equal(site)
}

// ReturnZero replaces a BL with "mov w0, wzr" so the call reports success.
type ReturnZero struct{}

func (ReturnZero) Condition(word uint32) bool         { return arm64.IsBL(word) }
func (ReturnZero) Patch(word uint32) pattern.Bytes    { return fixed{arm64.MovW0WZR}.Patch(word) }
func (ReturnZero) Applied(site []byte, w uint32) bool { return fixed{arm64.MovW0WZR}.Applied(site, w) }

// TBZNop removes a TBZ.
type TBZNop struct{}

func (TBZNop) Condition(word uint32) bool         { return arm64.IsTBZ(word) }
func (TBZNop) Patch(word uint32) pattern.Bytes    { return fixed{arm64.NOP}.Patch(word) }
func (TBZNop) Applied(site []byte, w uint32) bool { return fixed{arm64.NOP}.Applied(site, w) }

// BranchNop removes a B.NE.
type BranchNop struct{}

func (BranchNop) Condition(word uint32) bool         { return arm64.IsBNE(word) }
func (BranchNop) Patch(word uint32) pattern.Bytes    { return fixed{arm64.NOP}.Patch(word) }
func (BranchNop) Applied(site []byte, w uint32) bool { return fixed{arm64.NOP}.Applied(site, w) }

// MovNop removes a MOVZ.
type MovNop struct{}

func (MovNop) Condition(word uint32) bool         { return arm64.IsMovWide(word) }
func (MovNop) Patch(word uint32) pattern.Bytes    { return fixed{arm64.NOP}.Patch(word) }
func (MovNop) Applied(site []byte, w uint32) bool { return fixed{arm64.NOP}.Applied(site, w) }

// CBZBranch turns a CBZ into an unconditional branch to the same target.
type CBZBranch struct{}

func (CBZBranch) Condition(word uint32) bool { return arm64.IsCBZ(word) }

func (CBZBranch) Patch(word uint32) pattern.Bytes {
	return pattern.FromUint32(arm64.BranchFrom(word))
}

func (CBZBranch) Applied(_ []byte, word uint32) bool { return arm64.IsBranch(word) }

// ResultZero replaces the instruction that moves a result into x0 with
// "mov x0, xzr". Before firmware 15.0.0 that instruction is
// "and x0, x19, #0xffffffff"; from 15.0.0 on it is a 32 bit register mov.
type ResultZero struct {
	Legacy bool
}

func (r ResultZero) Condition(word uint32) bool {
	if r.Legacy {
		return arm64.IsAndImm64(word)
	}
	return arm64.IsOrrShiftedReg32(word)
}

func (ResultZero) Patch(word uint32) pattern.Bytes    { return fixed{arm64.MovX0XZR}.Patch(word) }
func (ResultZero) Applied(site []byte, w uint32) bool { return fixed{arm64.MovX0XZR}.Applied(site, w) }

// SubsFlip rewrites one operand byte of the signature check compare so it
// always takes the success path. Atmosphère 0.11.0-0.12.0 compared against an
// immediate 0xA, 0.13.0 and later compare against w1.
type SubsFlip struct{}

const (
	subsImmBefore = 0x0A
	subsImmAfter  = 0x01
	subsRmBefore  = 1
	subsRmAfter   = 0
)

func (SubsFlip) Condition(word uint32) bool {
	return arm64.IsSubsImm32(word, subsImmBefore) || arm64.IsSubsShiftedReg(word, subsRmBefore)
}

func (SubsFlip) Patch(word uint32) pattern.Bytes {
	if arm64.IsSubsImm32(word, subsImmBefore) {
		return pattern.FromUint8(0x1)
	}
	return pattern.FromUint8(0x0)
}

func (SubsFlip) Applied(_ []byte, word uint32) bool {
	return arm64.IsSubsImm32(word, subsImmAfter) || arm64.IsSubsShiftedReg(word, subsRmAfter)
}

// Payload overwrites a whole function prologue with Bytes. The instruction
// must be the 64 bit pre-index STP that opens the function.
type Payload struct {
	Bytes pattern.Bytes
}

func (p Payload) Condition(word uint32) bool { return arm64.IsStpPreIndex64(word) }

func (p Payload) Patch(uint32) pattern.Bytes { return p.Bytes }

func (p Payload) Applied(site []byte, _ uint32) bool { return p.Bytes.Equal(site) }
