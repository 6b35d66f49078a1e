package node

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErrFormatsWithoutWrappedError(t *testing.T) {
	err := newErr(CodeBadBlock, "something went wrong")
	require.EqualError(t, err, "bad_block: something went wrong")
	require.Equal(t, CodeBadBlock, CodeOf(err))
}

func TestWrapErrFormatsWithWrappedError(t *testing.T) {
	err := wrapErr(CodeIoError, "reading file", io.ErrUnexpectedEOF)
	require.EqualError(t, err, "io_error: reading file: unexpected EOF")
	require.Equal(t, CodeIoError, CodeOf(err))
}

func TestWrapErrUnwrapsToUnderlyingError(t *testing.T) {
	err := wrapErr(CodeCorruptStore, "parsing", io.ErrUnexpectedEOF)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestCodeOfNonNodeErrorIsEmpty(t *testing.T) {
	require.Equal(t, ErrorCode(""), CodeOf(errors.New("plain error")))
	require.Equal(t, ErrorCode(""), CodeOf(nil))
}
