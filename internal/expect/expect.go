// Package expect loads the expected-diagnostic annotations of a test file.
//
// An annotation is a comment of the form
//
//	//~ ERROR message      applies to this line
//	//~^^ WARN message     applies two lines up
//	//~| NOTE message      applies to the line of the previous annotation
//	//[rev]~ ERROR message only for revision rev
//
// A kind may carry a multiplicity, as in "ERROR*2", requiring exactly that
// many matching diagnostics.
package expect

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// ErrorKind is the severity of a diagnostic.
type ErrorKind int

const (
	// KindNone matches a diagnostic of any kind.
	KindNone ErrorKind = iota
	KindHelp
	KindError
	KindNote
	KindSuggestion
	KindWarning
)

// ParseKind parses a severity token such as "ERROR", "warn" or "NOTE:".
func ParseKind(s string) (ErrorKind, bool) {
	s, _, _ = strings.Cut(strings.ToUpper(s), ":")
	switch s {
	case "HELP":
		return KindHelp, true
	case "ERROR":
		return KindError, true
	case "NOTE":
		return KindNote, true
	case "SUGGESTION":
		return KindSuggestion, true
	case "WARN", "WARNING":
		return KindWarning, true
	}
	return KindNone, false
}

func (k ErrorKind) String() string {
	switch k {
	case KindHelp:
		return "help message"
	case KindError:
		return "error"
	case KindNote:
		return "note"
	case KindSuggestion:
		return "suggestion"
	case KindWarning:
		return "warning"
	}
	return "message"
}

// MarshalText lets kinds appear by name in stored results.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is one expected or actual diagnostic.
type Error struct {
	Line int       `json:"line"`
	Kind ErrorKind `json:"kind"`
	Msg  string    `json:"msg"`
	// Count is the exact number of occurrences required; 0 means any.
	Count int `json:"count,omitempty"`
}

// ErrFollowWithoutPrevious reports a "//~|" annotation with nothing to follow.
var ErrFollowWithoutPrevious = errors.New("encountered //~| without preceding //~^ line")

// Load reads the annotations of the file at path for revision rev.
func Load(path, rev string) ([]Error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	errs, err := Parse(f, rev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return errs, nil
}

// Parse reads annotations from r. With a revision only "//[rev]~"
// annotations are read, otherwise only plain "//~" ones.
func Parse(r io.Reader, rev string) ([]Error, error) {
	marker := "//~"
	if rev != "" {
		marker = "//[" + rev + "]~"
	}

	var out []Error
	lastLine := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	num := 0
	for scanner.Scan() {
		num++
		e, follow, ok, err := parseLine(scanner.Text(), num, marker, lastLine)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", num, err)
		}
		if !ok {
			continue
		}
		if !follow {
			lastLine = e.Line
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseLine(line string, num int, marker string, lastLine int) (e Error, follow, ok bool, err error) {
	start := strings.Index(line, marker)
	if start < 0 {
		return Error{}, false, false, nil
	}
	rest := line[start+len(marker):]

	adjust := 0
	if strings.HasPrefix(rest, "|") {
		follow = true
		rest = rest[1:]
	} else {
		for adjust < len(rest) && rest[adjust] == '^' {
			adjust++
		}
		rest = rest[adjust:]
	}

	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	token := rest
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		token = rest[:i]
	}
	if token == "" {
		return Error{}, false, false, errors.New("encountered unexpected empty comment")
	}

	kindToken, countToken, hasCount := strings.Cut(token, "*")
	if kind, isKind := ParseKind(kindToken); isKind {
		e.Kind = kind
		if hasCount {
			n, convErr := strconv.Atoi(countToken)
			if convErr != nil || n < 1 {
				return Error{}, false, false, fmt.Errorf("malformed multiplicity %q", token)
			}
			e.Count = n
		}
		rest = rest[len(token):]
	}
	e.Msg = strings.TrimSpace(rest)

	switch {
	case follow:
		if lastLine == 0 {
			return Error{}, false, false, ErrFollowWithoutPrevious
		}
		e.Line = lastLine
	default:
		e.Line = num - adjust
		if e.Line < 1 {
			return Error{}, false, false, fmt.Errorf("annotation points %d lines up, before the start of the file", adjust)
		}
	}
	return e, follow, true, nil
}

// HasKind reports whether any entry has kind k.
func HasKind(errs []Error, k ErrorKind) bool {
	for _, e := range errs {
		if e.Kind == k {
			return true
		}
	}
	return false
}
