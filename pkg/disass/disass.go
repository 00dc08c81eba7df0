// Package disass renders single A64 instruction words for display.
package disass

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/blacktop/arm64-cgo/disassemble"
)

// Instruction is one decoded word.
type Instruction struct {
	Addr      uint64
	Raw       uint32
	Operation string
	Operands  string
	Err       error
}

// Decode disassembles word as if it were located at addr. Words that do not
// decode are returned with Operation ".long" and Err set.
func Decode(addr uint64, word uint32) Instruction {
	var results [1024]byte

	in := Instruction{Addr: addr, Raw: word}
	instr, err := disassemble.Decompose(addr, word, &results)
	if err != nil {
		in.Operation = ".long"
		in.Operands = fmt.Sprintf("%#x", word)
		in.Err = err
		return in
	}
	in.Operation = instr.Operation.String()
	in.Operands = strings.TrimSpace(strings.TrimPrefix(instr.String(), in.Operation))
	return in
}

// DecodeBytes decodes every whole little-endian word in data.
func DecodeBytes(addr uint64, data []byte) []Instruction {
	var out []Instruction
	for i := 0; i+4 <= len(data); i += 4 {
		out = append(out, Decode(addr+uint64(i), binary.LittleEndian.Uint32(data[i:])))
	}
	return out
}

// OpCodes returns the raw bytes of the word as printed by objdump.
func (i Instruction) OpCodes() string {
	return disassemble.GetOpCodeByteString(i.Raw)
}

func (i Instruction) String() string {
	if i.Operands == "" {
		return i.Operation
	}
	return i.Operation + "\t" + i.Operands
}

// Line renders the instruction as a colored listing line.
func (i Instruction) Line() string {
	line := fmt.Sprintf("%s:  %s   %s %s",
		colorAddr("%#08x", i.Addr),
		colorOpCodes(i.OpCodes()),
		colorOp("%-7s", i.Operation),
		ColorOperands(" "+i.Operands),
	)
	if i.Err != nil {
		line += colorComment(" ; (" + i.Err.Error() + ")")
	}
	return line
}
