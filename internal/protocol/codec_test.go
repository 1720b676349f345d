package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filehub/pkg/types"
)

// chunkedReadWriter returns at most chunkSize bytes per Read, simulating a
// TCP stream delivering data in small segments.
type chunkedReadWriter struct {
	buf       bytes.Buffer
	chunkSize int
}

func (c *chunkedReadWriter) Read(p []byte) (int, error) {
	if len(p) > c.chunkSize {
		p = p[:c.chunkSize]
	}
	return c.buf.Read(p)
}

func (c *chunkedReadWriter) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func TestCodecMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "upload request",
			msg: Message{
				Command:      CmdUpload,
				Filename:     "report.txt",
				Filesize:     1234,
				Hash:         "abc123",
				HandlingMode: ModeVersioning,
			},
		},
		{
			name: "download request with resume",
			msg: Message{
				Command:      CmdDownload,
				Filename:     "report.txt",
				ResumeOffset: 512,
			},
		},
		{
			name: "list request",
			msg:  Message{Command: CmdList},
		},
		{
			name: "upload ready",
			msg: Message{
				Status:       StatusReady,
				Filename:     "report_v2.txt",
				IsDuplicate:  true,
				HandlingMode: ModeRename,
			},
		},
		{
			name: "download ready",
			msg: Message{
				Status:       StatusReady,
				Filesize:     9000,
				Hash:         "def456",
				ResumingFrom: 4000,
			},
		},
		{
			name: "error response",
			msg: Message{
				Status: StatusError,
				Kind:   KindNotFound,
				Detail: "File not found: missing.txt",
			},
		},
		{
			name: "file list response",
			msg: Message{
				Status: StatusSuccess,
				Files: []types.FileRecord{
					{
						Filename: "a.txt",
						Size:     10,
						Modified: "2024-01-02 03:04:05",
						Versions: []types.VersionRecord{
							{Filename: "a_20240101_120000.txt", Size: 8, Modified: "2024-01-01 12:00:00"},
						},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stream bytes.Buffer
			codec := NewCodec(&stream)

			require.NoError(t, codec.WriteMessage(&tt.msg))

			got, err := codec.ReadMessage()
			require.NoError(t, err)
			assert.Equal(t, tt.msg, *got)
		})
	}
}

func TestCodecRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"invalid json", "not json at all\n"},
		{"no tag", "{}\n"},
		{"upload missing hash", `{"command":"UPLOAD","filename":"a.txt","filesize":10}` + "\n"},
		{"upload bad mode", `{"command":"UPLOAD","filename":"a.txt","hash":"x","handling_mode":"wat"}` + "\n"},
		{"download missing filename", `{"command":"DOWNLOAD"}` + "\n"},
		{"download negative offset", `{"command":"DOWNLOAD","filename":"a.txt","resume_offset":-1}` + "\n"},
		{"unknown status", `{"status":"maybe"}` + "\n"},
		{"error without kind", `{"status":"error","message":"boom"}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stream bytes.Buffer
			stream.WriteString(tt.frame)

			_, err := NewCodec(&stream).ReadMessage()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestCodecAcceptsUnknownCommand(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString(`{"command":"FROBNICATE"}` + "\n")

	msg, err := NewCodec(&stream).ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, Command("FROBNICATE"), msg.Command)
}

func TestCodecTruncatedFrame(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString(`{"command":"LIST"`)

	_, err := NewCodec(&stream).ReadMessage()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestCodecPayloadAcrossPartialReads(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 1000)
	stream := &chunkedReadWriter{chunkSize: 7}

	writer := NewCodec(stream)
	require.NoError(t, writer.WriteMessage(&Message{
		Command:  CmdUpload,
		Filename: "a.bin",
		Filesize: int64(len(payload)),
		Hash:     "x",
	}))
	require.NoError(t, writer.WritePayload(bytes.NewReader(payload), int64(len(payload))))

	reader := NewCodec(stream)
	msg, err := reader.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), msg.Filesize)

	var got bytes.Buffer
	require.NoError(t, reader.ReadPayload(&got, msg.Filesize))
	assert.Equal(t, payload, got.Bytes())
}

func TestCodecFramePayloadFrameSequence(t *testing.T) {
	// A frame, its payload, and a following frame share one stream; the
	// codec must neither eat payload bytes as frame data nor vice versa.
	payload := []byte("raw payload bytes, no wrapper\nwith embedded newline")
	var stream bytes.Buffer

	writer := NewCodec(&stream)
	require.NoError(t, writer.WriteMessage(&Message{Status: StatusReady, Filesize: int64(len(payload))}))
	require.NoError(t, writer.WritePayload(bytes.NewReader(payload), int64(len(payload))))
	require.NoError(t, writer.WriteMessage(&Message{Status: StatusSuccess, Hash: "h"}))

	reader := NewCodec(&stream)

	ready, err := reader.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, StatusReady, ready.Status)

	var got bytes.Buffer
	require.NoError(t, reader.ReadPayload(&got, ready.Filesize))
	assert.Equal(t, payload, got.Bytes())

	result, err := reader.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "h", result.Hash)
}

func TestCodecShortPayload(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("only ten b")

	var got bytes.Buffer
	err := NewCodec(&stream).ReadPayload(&got, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestCodecWritePayloadShortSource(t *testing.T) {
	var stream bytes.Buffer
	err := NewCodec(&stream).WritePayload(bytes.NewReader([]byte("short")), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestCodecPayloadReaderNeverOverReads(t *testing.T) {
	var stream bytes.Buffer
	codec := NewCodec(&stream)
	require.NoError(t, codec.WriteMessage(&Message{Status: StatusReady, Filesize: 5}))
	stream.WriteString("01234")
	require.NoError(t, codec.WriteMessage(&Message{Status: StatusSuccess}))

	_, err := codec.ReadMessage()
	require.NoError(t, err)

	data, err := io.ReadAll(codec.PayloadReader(5))
	require.NoError(t, err)
	assert.Equal(t, "01234", string(data))

	// The byte after the declared payload is the next frame, untouched.
	next, err := codec.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, next.Status)
}

func TestHandlingModeValid(t *testing.T) {
	assert.True(t, ModeOverwrite.Valid())
	assert.True(t, ModeRename.Valid())
	assert.True(t, ModeVersioning.Valid())
	assert.False(t, HandlingMode("").Valid())
	assert.False(t, HandlingMode("delete").Valid())
}

func TestRemoteError(t *testing.T) {
	err := error(&RemoteError{Kind: KindHashMismatch, Detail: "File corruption detected"})
	assert.Contains(t, err.Error(), "hash_mismatch")

	re, ok := AsRemote(err)
	require.True(t, ok)
	assert.Equal(t, KindHashMismatch, re.Kind)

	_, ok = AsRemote(errors.New("plain"))
	assert.False(t, ok)
}
