package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxCommandSize bounds one console line.
	DefaultMaxCommandSize = 256
	// EnvMaxCommandSize is the environment variable to override the default
	EnvMaxCommandSize = "CADENCE_MAX_COMMAND_SIZE"
)

var (
	ErrCommandTooLarge = errors.New("command exceeds maximum allowed size")
	ErrInvalidUTF8     = errors.New("command contains invalid UTF-8 sequences")
)

// SanitizeCommand cleans a console line by enforcing the size limit,
// validating UTF-8 and stripping control characters and surrounding space.
func SanitizeCommand(input string) (string, error) {
	limit := maxCommandSize()
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrCommandTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Fast path: no control chars
	if strings.IndexFunc(input, unicode.IsControl) < 0 {
		return strings.TrimSpace(input), nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func maxCommandSize() int {
	if val := os.Getenv(EnvMaxCommandSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxCommandSize
}
