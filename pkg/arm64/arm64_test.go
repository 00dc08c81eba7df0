package arm64

import "testing"

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		fn   func(uint32) bool
		word uint32
		want bool
	}{
		{"bl", IsBL, 0x9400002A, true},
		{"bl rejects b", IsBL, 0x1400002A, false},
		{"tbz w0 #0", IsTBZ, 0x36000040, true},
		{"tbz x #32", IsTBZ, 0xB6000040, true},
		{"tbnz", IsTBZ, 0x37000040, false},
		{"cbz w0", IsCBZ, 0x34000040, true},
		{"cbz x0", IsCBZ, 0xB4000040, true},
		{"cbnz w0", IsCBZ, 0x35000040, false},
		{"movz w0 #1", IsMovWide, 0x52800020, true},
		{"movz x0 #1", IsMovWide, 0xD2800020, true},
		{"mov w0, w19", IsOrrShiftedReg32, 0x2A1303E0, true},
		{"mov x0, x19", IsOrrShiftedReg32, 0xAA1303E0, false},
		{"and x0, x19, #0xffffffff", IsAndImm64, 0x92407E60, true},
		{"b.ne", IsBNE, 0x54000041, true},
		{"stp x29, x30, [sp, #-16]!", IsStpPreIndex64, 0xA9BF7BFD, true},
		{"stp x29, x30, [sp, #16]", IsStpPreIndex64, 0xA9017BFD, false},
		{"b", IsBranch, 0x14000002, true},
		{"b backward", IsBranch, 0x17FFFFFE, true},
		{"bl", IsBranch, 0x9400002A, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.word); got != tt.want {
				t.Errorf("%s(%#08x) = %t, want %t", tt.name, tt.word, got, tt.want)
			}
		})
	}
}

func TestSubs(t *testing.T) {
	// cmp w8, #0xa
	if !IsSubsImm32(0x7100291F, 0x0A) {
		t.Error("cmp w8, #0xa not matched")
	}
	if IsSubsImm32(0x7100291F, 0x01) {
		t.Error("cmp w8, #0xa matched imm 1")
	}
	// cmp w0, w1
	if !IsSubsShiftedReg(0x6B01001F, 1) {
		t.Error("cmp w0, w1 not matched")
	}
	// cmp w0, w0
	if IsSubsShiftedReg(0x6B00001F, 1) || !IsSubsShiftedReg(0x6B00001F, 0) {
		t.Error("cmp w0, w0 mismatched")
	}
	// cmp w0, w1, lsl #2 keeps the same opcode once the shift type is masked
	if !IsSubsShiftedReg(0x6B41081F, 1) {
		t.Error("shifted cmp not matched")
	}
}

func TestBranchFrom(t *testing.T) {
	tests := []struct {
		name string
		word uint32
		want uint32
	}{
		{"forward", 0x34000040, 0x14000002},
		{"forward x", 0xB4000100, 0x14000008},
		{"backward", 0x34FFFFE0, 0x17FFFFFF},
	}
	for _, tt := range tests {
		if got := BranchFrom(tt.word); got != tt.want {
			t.Errorf("%s: BranchFrom(%#08x) = %#08x, want %#08x", tt.name, tt.word, got, tt.want)
		}
	}
	if Imm19(0x34FFFFE0) != -1 {
		t.Errorf("Imm19 = %d, want -1", Imm19(0x34FFFFE0))
	}
}
