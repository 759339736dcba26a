package main

import (
	"fmt"
	"os"
)

// ANSI escape codes for terminal output. All helpers write to stderr so
// stdout stays clean for pipeable payloads like search results.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func paint(code, s string) string {
	if noColor {
		return s
	}
	return code + s + ansiReset
}

// report prints a glyph-prefixed line in the given color.
func report(code, glyph, format string, args ...any) {
	fmt.Fprintln(os.Stderr, paint(code, glyph+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { report(ansiGreen, "✓", format, args...) }
func printError(format string, args ...any)   { report(ansiRed, "✗", format, args...) }
func printWarning(format string, args ...any) { report(ansiYellow, "⚠", format, args...) }

// printStage reports one pipeline activity as it streams in.
func printStage(format string, args ...any) { report(ansiCyan, "→", format, args...) }

// printField prints an indented "label: value" status line.
func printField(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", paint(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
