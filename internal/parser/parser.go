// Package parser decodes the compiler's structured diagnostic stream.
package parser

import "compiletest/internal/expect"

// Parser turns compiler output into the diagnostics it reports for one file.
type Parser interface {
	Parse(fileName, output string) ([]expect.Error, error)
}
