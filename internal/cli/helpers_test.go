package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(nil))
	assert.NoError(t, handleExecutionError(context.Canceled))
	assert.NoError(t, handleExecutionError(fmt.Errorf("read: %w", io.EOF)))

	fatal := errors.New("clock moved backwards")
	assert.Equal(t, fatal, handleExecutionError(fatal))
}

func TestInterruptibleReader(t *testing.T) {
	cancel := make(chan struct{})
	r := NewInterruptibleReader(strings.NewReader("abc"), cancel)

	buf := make([]byte, 3)
	n, err := r.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	close(cancel)
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, errInterrupted)
}

func TestLogCompletion(t *testing.T) {
	tests := []struct {
		name string
		err  error
		sig  os.Signal
		want string
	}{
		{"Clean", nil, nil, ">>> Stopped at 'idle'."},
		{"Interrupt", context.Canceled, os.Interrupt, "[CTRL+C]\n>>> Interrupted at 'idle'."},
		{"Terminate", context.Canceled, syscall.SIGTERM, ">>> Terminated at 'idle'."},
		{"Fatal", errors.New("boom"), nil, ">>> Halted at 'idle': boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			logCompletion(&out, "", tt.err, false, tt.sig)
			assert.Contains(t, out.String(), tt.want)
		})
	}

	var out bytes.Buffer
	logCompletion(&out, "full_cycle", nil, true, nil)
	assert.Empty(t, out.String())
}
