// Package arm64 decodes the handful of A64 instruction shapes that patch rules
// look for and encodes their replacements. Words are in host order, i.e. the
// little-endian value read from memory.
package arm64

// Encodings written by patch rules.
const (
	// NOP is "nop".
	NOP uint32 = 0xD503201F
	// MovW0WZR is "mov w0, wzr" (orr w0, wzr, wzr).
	MovW0WZR uint32 = 0x2A1F03E0
	// MovX0XZR is "mov x0, xzr" (orr x0, xzr, xzr).
	MovX0XZR uint32 = 0xAA1F03E0
	// B is the opcode of an unconditional immediate branch, imm26 in bits 0-25.
	B uint32 = 0x14000000
)

// Field extracts (word >> shift) & mask.
func Field(word uint32, shift uint, mask uint32) uint32 {
	return (word >> shift) & mask
}

// top8 is bits 24-31: the opcode byte of most data-processing encodings.
func top8(word uint32) uint32 { return Field(word, 24, 0xFF) }

// IsBL: bits 26-31 == 0b100101.
func IsBL(word uint32) bool {
	return Field(word, 26, 0x3F) == 0x25
}

// IsTBZ matches TBZ on any bit position: bits 24-30 == 0b0110110 (bit 31 is b5).
func IsTBZ(word uint32) bool {
	return Field(word, 24, 0x7F) == 0x36
}

// IsCBZ matches 32 and 64 bit CBZ: opcode byte 0x34 or 0xB4.
func IsCBZ(word uint32) bool {
	op := top8(word)
	return op == 0x34 || op == 0xB4
}

// IsMovWide matches MOVZ (32/64): bits 24-30 == 0b1010010.
func IsMovWide(word uint32) bool {
	return Field(word, 24, 0x7F) == 0x52
}

// IsOrrShiftedReg32 matches 32 bit ORR (shifted register), the encoding
// behind "mov wd, wm": opcode byte 0x2A.
func IsOrrShiftedReg32(word uint32) bool {
	return top8(word) == 0x2A
}

// IsAndImm64 matches 64 bit AND (immediate): opcode byte 0x92.
func IsAndImm64(word uint32) bool {
	return top8(word) == 0x92
}

// IsBNE matches B.cond words (opcode byte 0x54) and, as the original rule
// tables expect, any word whose bit 4 is clear.
func IsBNE(word uint32) bool {
	return top8(word) == 0x54 || word&0x10 == 0
}

// SubsImm12 is the imm12 field (bits 10-21) of SUBS (immediate).
func SubsImm12(word uint32) uint32 {
	return Field(word, 10, 0xFFF)
}

// IsSubsImm32 matches 32 bit SUBS (immediate) (opcode byte 0x71) with the
// given imm12.
func IsSubsImm32(word, imm uint32) bool {
	return top8(word) == 0x71 && SubsImm12(word) == imm
}

// subsRegOpc is bits 21-31 of SUBS (shifted register) with the shift type
// bits 22-23 masked out by 0x7F9.
const subsRegOpc = 0x358

// SubsRm is the Rm field (bits 16-20) of SUBS (shifted register).
func SubsRm(word uint32) uint32 {
	return Field(word, 16, 0x1F)
}

// IsSubsShiftedReg matches 32 bit SUBS (shifted register) comparing against rm.
func IsSubsShiftedReg(word, rm uint32) bool {
	return Field(word, 21, 0x7F9) == subsRegOpc && SubsRm(word) == rm
}

// IsStpPreIndex64 matches "stp xt1, xt2, [xn, #imm]!": bits 22-31 == 0b1010100110.
func IsStpPreIndex64(word uint32) bool {
	return Field(word, 22, 0x3FF) == 0x2A6
}

// IsBranch matches an unconditional immediate branch: bits 26-31 == 0b000101.
func IsBranch(word uint32) bool {
	return Field(word, 26, 0x3F) == 0x05
}

// Imm19 returns the sign extended imm19 field (bits 5-23) of CBZ/CBNZ/B.cond.
func Imm19(word uint32) int32 {
	return int32(Field(word, 5, 0x7FFFF)<<13) >> 13
}

// Branch encodes "b" with a word offset (imm26).
func Branch(imm26 int32) uint32 {
	return B | uint32(imm26)&0x3FFFFFF
}

// BranchFrom turns a compare-and-branch word into an unconditional branch to
// the same target.
func BranchFrom(word uint32) uint32 {
	return Branch(Imm19(word))
}
