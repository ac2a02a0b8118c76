// Package ui styles the human-readable lines printed by the commands.
package ui

import "strings"

// ANSI escape sequences
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

func wrap(style, s string) string {
	return style + s + ColorReset
}

func Bold(s string) string    { return wrap(ColorBold, s) }
func Dim(s string) string     { return wrap(ColorDim, s) }
func Success(s string) string { return wrap(ColorGreen, s) }
func Error(s string) string   { return wrap(ColorRed, s) }

// Info marks neutral notices such as pending years or interrupted runs
func Info(s string) string { return wrap(ColorDim+ColorYellow, s) }

// Command highlights a command line the user can type
func Command(s string) string { return wrap(ColorCyan, s) }

// Rule is the dimmed line printed under section titles
func Rule() string {
	return Dim(strings.Repeat("━", 30))
}
