package hardware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/cadence/pkg/domain"
)

// Param binds a logical parameter to the commands of a line instrument.
type Param struct {
	// Get is the query command. Empty means write-only.
	Get string
	// Set is a format string with a single %s verb for the value. Empty means read-only.
	Set string
	// Write maps logical values to wire values before formatting Set.
	Write map[string]string
	// Read maps wire responses to logical values. When nil, Write is inverted.
	Read map[string]string
	// Suffix is stripped from responses (units such as "K").
	Suffix string
}

// LineInstrument speaks a terminator-delimited command/response protocol.
// Every query writes one command line and reads exactly one response line.
type LineInstrument struct {
	name       string
	terminator string
	params     map[string]Param
	timeout    time.Duration

	mu     sync.Mutex
	rw     io.ReadWriter
	reader *bufio.Reader
}

// LineOption configures a LineInstrument.
type LineOption func(*LineInstrument)

// WithTerminator sets the line terminator. Default is "\r\n".
func WithTerminator(t string) LineOption {
	return func(l *LineInstrument) {
		if t != "" {
			l.terminator = t
		}
	}
}

// WithReadTimeout bounds each response when the transport supports read deadlines.
func WithReadTimeout(d time.Duration) LineOption {
	return func(l *LineInstrument) {
		l.timeout = d
	}
}

// NewLineInstrument binds a parameter table to a transport.
func NewLineInstrument(name string, rw io.ReadWriter, params map[string]Param, opts ...LineOption) *LineInstrument {
	l := &LineInstrument{
		name:       name,
		terminator: "\r\n",
		params:     params,
		timeout:    2 * time.Second,
		rw:         rw,
		reader:     bufio.NewReader(rw),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LineInstrument) Name() string { return l.name }

func (l *LineInstrument) Params() []string {
	names := make([]string, 0, len(l.params))
	for n := range l.params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get sends the query command of param and returns the decoded response.
func (l *LineInstrument) Get(ctx context.Context, param string) (string, error) {
	p, ok := l.params[param]
	if !ok {
		return "", l.readErr(param, ErrUnknownParam)
	}
	if p.Get == "" {
		return "", l.readErr(param, errors.New("parameter is write-only"))
	}

	resp, err := l.Query(ctx, p.Get)
	if err != nil {
		return "", l.readErr(param, err)
	}
	resp = strings.TrimSpace(strings.TrimSuffix(resp, p.Suffix))
	if m := p.readMap(); m != nil {
		v, ok := m[resp]
		if !ok {
			return "", l.readErr(param, fmt.Errorf("unexpected response %q", resp))
		}
		return v, nil
	}
	return resp, nil
}

// Set formats value through the parameter table and writes the command.
func (l *LineInstrument) Set(ctx context.Context, param string, value string) error {
	p, ok := l.params[param]
	if !ok {
		return fmt.Errorf("%s.%s: %w", l.name, param, ErrUnknownParam)
	}
	if p.Set == "" {
		return fmt.Errorf("%s.%s: %w", l.name, param, ErrReadOnly)
	}
	if p.Write != nil {
		wire, ok := p.Write[value]
		if !ok {
			return fmt.Errorf("%s.%s: value %q not in %v", l.name, param, value, mapKeys(p.Write))
		}
		value = wire
	}
	return l.Write(ctx, fmt.Sprintf(p.Set, value))
}

// Query writes a raw command and reads one response line.
// Bytes left over from an earlier exchange are discarded before the command is sent.
func (l *LineInstrument) Query(ctx context.Context, cmd string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := l.reader.Buffered(); n > 0 {
		_, _ = l.reader.Discard(n)
	}
	if err := l.write(ctx, cmd); err != nil {
		return "", err
	}
	if d, ok := l.rw.(interface{ SetReadDeadline(time.Time) error }); ok && l.timeout > 0 {
		deadline := time.Now().Add(l.timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		// Transports without deadline support report an error here; the read then blocks.
		_ = d.SetReadDeadline(deadline)
	}

	delim := l.terminator[len(l.terminator)-1]
	var sb strings.Builder
	for {
		chunk, err := l.reader.ReadString(delim)
		sb.WriteString(chunk)
		if err != nil {
			l.reader.Reset(l.rw)
			return "", fmt.Errorf("read response to %q: %w", cmd, err)
		}
		if strings.HasSuffix(sb.String(), l.terminator) {
			break
		}
	}
	return strings.TrimSuffix(sb.String(), l.terminator), nil
}

// Write sends a raw command without reading a response.
func (l *LineInstrument) Write(ctx context.Context, cmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(ctx, cmd)
}

func (l *LineInstrument) write(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := io.WriteString(l.rw, cmd+l.terminator); err != nil {
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	return nil
}

// Close closes the transport when it is closable.
func (l *LineInstrument) Close() error {
	if c, ok := l.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (l *LineInstrument) readErr(param string, err error) error {
	return &domain.HardwareReadError{Instrument: l.name, Param: param, Err: err}
}

func (p Param) readMap() map[string]string {
	if p.Read != nil {
		return p.Read
	}
	if p.Write == nil {
		return nil
	}
	inv := make(map[string]string, len(p.Write))
	for k, v := range p.Write {
		inv[v] = k
	}
	return inv
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
