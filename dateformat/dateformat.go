// Package dateformat translates .NET style date/time format strings, the
// notation Core Temp users already have in their configuration, into Go
// reference layouts. Parsing follows the invariant en-US culture: ':' and
// '/' are literal separators and month/day names are English.
package dateformat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupported is returned for format strings which have no Go layout equivalent.
var ErrUnsupported = errors.New("unsupported date format")

// standardFormats maps the single-character standard specifiers to their en-US patterns.
var standardFormats = map[string]string{
	"d": "1/2/2006",
	"D": "Monday, January 2, 2006",
	"g": "1/2/2006 3:04 PM",
	"G": "1/2/2006 3:04:05 PM",
	"t": "3:04 PM",
	"T": "3:04:05 PM",
	"s": "2006-01-02T15:04:05",
	"u": "2006-01-02 15:04:05Z",
	"r": time.RFC1123,
	"R": time.RFC1123,
}

// Layout converts a .NET custom or standard date format string into a Go layout.
func Layout(format string) (string, error) {
	if format == "" {
		return "", fmt.Errorf("%w: empty format", ErrUnsupported)
	}
	if layout, ok := standardFormats[format]; ok {
		return layout, nil
	}
	if len(format) == 1 {
		return "", fmt.Errorf("%w: standard specifier %q", ErrUnsupported, format)
	}

	var b strings.Builder
	runes := []rune(format)
	for i := 0; i < len(runes); {
		c := runes[i]
		n := 1
		for i+n < len(runes) && runes[i+n] == c {
			n++
		}

		switch c {
		case 'y':
			if n <= 2 {
				b.WriteString("06")
			} else {
				b.WriteString("2006")
			}
		case 'M':
			b.WriteString(pick(n, "1", "01", "Jan", "January"))
		case 'd':
			b.WriteString(pick(n, "2", "02", "Mon", "Monday"))
		case 'H':
			b.WriteString("15")
		case 'h':
			b.WriteString(pick(n, "3", "03"))
		case 'm':
			b.WriteString(pick(n, "4", "04"))
		case 's':
			b.WriteString(pick(n, "5", "05"))
		case 'f', 'F':
			out := b.String()
			if n > 7 || !(strings.HasSuffix(out, ".") || strings.HasSuffix(out, ",")) {
				return "", fmt.Errorf("%w: fraction %q must follow '.' or ',' and have at most 7 digits", ErrUnsupported, string(runes[i:i+n]))
			}
			digit := "0"
			if c == 'F' {
				digit = "9"
			}
			b.WriteString(strings.Repeat(digit, n))
		case 't':
			if n != 2 {
				return "", fmt.Errorf("%w: token %q in %q", ErrUnsupported, string(runes[i:i+n]), format)
			}
			b.WriteString("PM")
		case 'z':
			switch n {
			case 2:
				b.WriteString("-07")
			case 3:
				b.WriteString("-07:00")
			default:
				return "", fmt.Errorf("%w: token %q in %q", ErrUnsupported, string(runes[i:i+n]), format)
			}
		case 'K':
			b.WriteString(strings.Repeat("Z07:00", n))
		case 'g':
			return "", fmt.Errorf("%w: era token in %q", ErrUnsupported, format)
		case '%':
			// A '%' only marks the next character as a custom specifier.
			i++
			continue
		case '\\':
			if i+1 >= len(runes) {
				return "", fmt.Errorf("%w: trailing escape in %q", ErrUnsupported, format)
			}
			if err := writeLiteral(&b, string(runes[i+1])); err != nil {
				return "", err
			}
			i += 2
			continue
		case '\'', '"':
			end := i + 1
			for end < len(runes) && runes[end] != c {
				end++
			}
			if end >= len(runes) {
				return "", fmt.Errorf("%w: unterminated quote in %q", ErrUnsupported, format)
			}
			if err := writeLiteral(&b, string(runes[i+1:end])); err != nil {
				return "", err
			}
			i = end + 1
			continue
		default:
			if err := writeLiteral(&b, string(runes[i:i+n])); err != nil {
				return "", err
			}
		}
		i += n
	}
	return b.String(), nil
}

// Parse parses value with a .NET format string in the given location.
func Parse(format, value string, loc *time.Location) (time.Time, error) {
	layout, err := Layout(format)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(layout, value, loc)
}

func pick(n int, forms ...string) string {
	if n > len(forms) {
		n = len(forms)
	}
	return forms[n-1]
}

// writeLiteral copies literal text into a layout. Digits would be read by
// the Go parser as layout elements, so they are refused.
func writeLiteral(b *strings.Builder, literal string) error {
	if strings.ContainsAny(literal, "0123456789") {
		return fmt.Errorf("%w: literal %q cannot be expressed in a Go layout", ErrUnsupported, literal)
	}
	b.WriteString(literal)
	return nil
}
