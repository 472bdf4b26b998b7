// FILE: repertoire/internal/client/display/colors.go
package display

import "repertoire/internal/server/core"

// ANSI colors used by the REPL
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
)

// Paint wraps text in color and resets afterwards.
func Paint(color, text string) string {
	return color + text + Reset
}

// SideColor is the prompt color of a repertoire side.
func SideColor(side core.Side) string {
	if side == core.SideBlack {
		return Red
	}
	return Blue
}

// Prompt renders the REPL prompt around text.
func Prompt(text string) string {
	return Yellow + text + Yellow + " > " + Reset
}
