package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"golang.org/x/term"
)

var normalPadding = cli.Default.Padding

// Indent indents apex log line to supplied level
func Indent(f func(s string), level int) func(string) {
	return func(s string) {
		cli.Default.Padding = normalPadding * level
		f(s)
		cli.Default.Padding = normalPadding
	}
}

// Pad creates left padding for printf members
func Pad(length int) string {
	if length > 0 {
		return strings.Repeat(" ", length)
	}
	return " "
}

// ConvertStrToInt converts an input string to uint64
func ConvertStrToInt(intStr string) (uint64, error) {
	intStr = strings.ToLower(strings.TrimSpace(intStr))

	if strings.HasPrefix(intStr, "0x") || strings.ContainsAny(intStr, "abcdef") {
		out, err := strconv.ParseUint(strings.TrimPrefix(intStr, "0x"), 16, 64)
		if err == nil {
			return out, nil
		}
		log.Warn("assuming given integer is in decimal")
	}
	out, err := strconv.ParseUint(intStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", intStr)
	}
	return out, nil
}

// Interactive reports whether both stdin and stdout are attached to a terminal.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}
