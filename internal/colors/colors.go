// Package colors provides centralized color output with TTY-aware defaults.
//
// Colors are automatically disabled when stdout is not a terminal. Use Init()
// to override based on CLI flags.
package colors

import "github.com/fatih/color"

// Init allows overriding the auto-detected color setting.
//   - forceColor == nil: keep auto-detected value
//   - forceColor == true: force colors on (--color)
//   - forceColor == false: force colors off (--no-color)
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

func Bold() *color.Color  { return color.New(color.Bold) }
func Faint() *color.Color { return color.New(color.Faint) }

func Red() *color.Color    { return color.New(color.FgRed) }
func Green() *color.Color  { return color.New(color.FgGreen) }
func Yellow() *color.Color { return color.New(color.FgYellow) }
func Cyan() *color.Color   { return color.New(color.FgCyan) }

func BoldRed() *color.Color     { return color.New(color.Bold, color.FgRed) }
func BoldGreen() *color.Color   { return color.New(color.Bold, color.FgGreen) }
func BoldMagenta() *color.Color { return color.New(color.Bold, color.FgMagenta) }
func BoldHiBlue() *color.Color  { return color.New(color.Bold, color.FgHiBlue) }

func FaintWhite() *color.Color   { return color.New(color.Faint, color.FgWhite) }
func FaintHiWhite() *color.Color { return color.New(color.Faint, color.FgHiWhite) }
