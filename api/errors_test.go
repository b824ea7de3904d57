// Package api tests.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := NewError(CodeTimedOut, "read data", nil)
	assert.True(t, errors.Is(err, ErrTimedOut))
	assert.False(t, errors.Is(err, ErrIO))
	assert.Equal(t, "read data: operation timed out", err.Error())
}

func TestErrorUnwrapsCause(t *testing.T) {
	err := NewError(CodeConnectFailed, "connect", syscall.ECONNREFUSED)
	assert.True(t, errors.Is(err, ErrConnectFailed))
	assert.True(t, errors.Is(err, syscall.ECONNREFUSED))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOfThroughWrapping(t *testing.T) {
	base := NewError(CodePeerClosed, "read data", nil)
	wrapped := pkgerrors.Wrap(fmt.Errorf("run 3: %w", base), "echo")
	assert.Equal(t, CodePeerClosed, CodeOf(wrapped))
	assert.Equal(t, CodeOK, CodeOf(nil))
	assert.Equal(t, CodeIO, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeTimedOut, CodeOf(fmt.Errorf("x: %w", ErrTimedOut)))
}

func TestConfigurationf(t *testing.T) {
	err := Configurationf("remote port range should in [1, %d]", 65535)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, "configuration error: remote port range should in [1, 65535]", err.Error())
}

func TestMismatchError(t *testing.T) {
	m := &MismatchError{Sent: []byte("hello"), Received: []byte("hallo")}
	assert.Equal(t, 1, m.Offset())
	assert.True(t, errors.Is(m, ErrDataMismatch))
	assert.Equal(t, CodeDataMismatch, CodeOf(fmt.Errorf("wrapped: %w", m)))

	same := &MismatchError{Sent: []byte("a"), Received: []byte("a")}
	assert.Equal(t, -1, same.Offset())

	short := &MismatchError{Sent: []byte("abc"), Received: []byte("ab")}
	assert.Equal(t, 2, short.Offset())
}

func TestInterestString(t *testing.T) {
	assert.Equal(t, "none", Interest(0).String())
	assert.Equal(t, "read|peerclose", (InterestRead | InterestPeerClose).String())
	assert.True(t, (InterestRead | InterestWrite).Has(InterestWrite))
	assert.False(t, InterestRead.Any(InterestWrite|ReadyHangup))
}
