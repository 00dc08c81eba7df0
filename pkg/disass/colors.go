package disass

import (
	"regexp"

	"github.com/blacktop/syspatch/internal/colors"
)

// disassembly colors
var colorOp = colors.Bold().SprintfFunc()
var colorRegs = colors.BoldHiBlue().SprintFunc()
var colorImm = colors.BoldMagenta().SprintFunc()
var colorAddr = colors.BoldMagenta().SprintfFunc()
var colorOpCodes = colors.FaintHiWhite().SprintFunc()
var colorComment = colors.FaintWhite().SprintFunc()

var (
	immMatch = regexp.MustCompile(`#?-?0x[0-9a-z]+`)
	regMatch = regexp.MustCompile(`\W([wx][0-9]{1,2}|[wx]zr|sp|lr|fp)`)
)

func ColorOperands(operands string) string {
	if len(operands) > 0 {
		operands = immMatch.ReplaceAllStringFunc(operands, func(s string) string {
			return colorImm(s)
		})
		operands = regMatch.ReplaceAllStringFunc(operands, func(s string) string {
			return string(s[0]) + colorRegs(s[1:])
		})
	}
	return operands
}
