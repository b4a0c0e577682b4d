package memfd

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSealFrom(t *testing.T) {
	content := []byte("#!/bin/sh\nexit 0\n")
	f, err := SealFrom("test", bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// the image is immutable once sealed
	_, err = unix.Pwrite(int(f.Fd()), []byte("x"), 0)
	assert.Error(t, err)
}

func TestSealPath(t *testing.T) {
	f, err := SealPath("/bin/true")
	require.NoError(t, err)
	defer f.Close()

	seals, err := unix.FcntlInt(f.Fd(), unix.F_GET_SEALS, 0)
	require.NoError(t, err)
	assert.Equal(t, roSeal, seals)
}

func TestSealPathMissing(t *testing.T) {
	_, err := SealPath("/nonexistent/never")
	assert.Error(t, err)
}
