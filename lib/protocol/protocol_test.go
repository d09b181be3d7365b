package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	frame := Frame{Body: []byte{MsgRequestIdentities}}

	require.NoError(t, WriteFrame(&buf, frame))
	require.Equal(t, []byte{0, 0, 0, 1, MsgRequestIdentities}, buf.Bytes())

	got, err := ReadFrame(&buf, DefaultMaxFrameSize)
	require.NoError(t, err)
	require.Equal(t, frame, got)
}

func TestReadFrameEOFAtStreamStart(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultMaxFrameSize)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	buf := []byte{0xff, 0xff, 0xff, 0xff}
	_, err := ReadFrame(bytes.NewReader(buf), DefaultMaxFrameSize)
	require.Error(t, err)
	require.True(t, trace.IsBadParameter(err))
}

func TestReadFrameRejectsTruncatedBody(t *testing.T) {
	buf := []byte{0, 0, 0, 5, 11, 1, 2}
	_, err := ReadFrame(bytes.NewReader(buf), DefaultMaxFrameSize)
	require.Error(t, err)
}

func TestWriteFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFailure(&buf))
	require.Equal(t, []byte{0, 0, 0, 1, MsgFailure}, buf.Bytes())
}

func TestFrameType(t *testing.T) {
	require.Equal(t, byte(0), Frame{}.Type())
	require.Equal(t, MsgSignRequest, Frame{Body: []byte{MsgSignRequest, 1, 2}}.Type())
}
