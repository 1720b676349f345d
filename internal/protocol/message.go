// Package protocol implements the control-frame codec for the file transfer
// wire protocol.
//
// A frame is a single JSON object terminated by a newline. When a frame's
// semantics declare a payload (the bytes of a file), exactly that many raw
// bytes follow on the same stream with no wrapper. Frames and payload bytes
// are always read through the same Codec so buffering never loses payload
// data.
package protocol

import (
	"fmt"

	"filehub/pkg/types"
)

// Command identifies a client request frame.
type Command string

const (
	CmdUpload   Command = "UPLOAD"
	CmdDownload Command = "DOWNLOAD"
	CmdList     Command = "LIST"
)

// Status identifies a server response frame, and the client's download
// acknowledgement.
type Status string

const (
	StatusReady   Status = "ready"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// HandlingMode selects how an upload that collides with an existing filename
// is resolved on the server.
type HandlingMode string

const (
	// ModeOverwrite replaces the existing file once the upload is verified.
	ModeOverwrite HandlingMode = "overwrite"
	// ModeRename stores the upload under the lowest unused _vN suffix.
	ModeRename HandlingMode = "rename"
	// ModeVersioning archives the current file before accepting the upload
	// under the original name.
	ModeVersioning HandlingMode = "versioning"
)

// Valid reports whether m names a known duplicate-handling policy.
func (m HandlingMode) Valid() bool {
	switch m {
	case ModeOverwrite, ModeRename, ModeVersioning:
		return true
	}
	return false
}

// Message is the control frame exchanged between client and server. It is a
// flat tagged union: request frames carry Command, response frames carry
// Status, and Validate checks the field set required by each tag.
type Message struct {
	Command      Command      `json:"command,omitempty"`
	Status       Status       `json:"status,omitempty"`
	Filename     string       `json:"filename,omitempty"`
	Filesize     int64        `json:"filesize,omitempty"`
	Hash         string       `json:"hash,omitempty"`
	HandlingMode HandlingMode `json:"handling_mode,omitempty"`
	ResumeOffset int64        `json:"resume_offset,omitempty"`
	ResumingFrom int64        `json:"resuming_from,omitempty"`
	IsDuplicate  bool         `json:"is_duplicate,omitempty"`
	Kind         Kind         `json:"kind,omitempty"`
	Detail       string       `json:"message,omitempty"`

	Files []types.FileRecord `json:"files,omitempty"`
}

// Validate checks that the frame matches the schema of its tag. Frames that
// carry neither a command nor a status, or that miss required fields, are
// rejected with ErrProtocol. A well-formed frame with an unrecognized command
// passes: the session handler answers those with an unknown-command error
// without dropping the connection.
func (m *Message) Validate() error {
	switch {
	case m.Command != "":
		return m.validateRequest()
	case m.Status != "":
		return m.validateResponse()
	default:
		return fmt.Errorf("%w: frame carries neither command nor status", ErrProtocol)
	}
}

func (m *Message) validateRequest() error {
	switch m.Command {
	case CmdUpload:
		if m.Filename == "" || m.Hash == "" {
			return fmt.Errorf("%w: upload frame missing filename or hash", ErrProtocol)
		}
		if m.Filesize < 0 {
			return fmt.Errorf("%w: upload frame declares negative filesize", ErrProtocol)
		}
		if m.HandlingMode != "" && !m.HandlingMode.Valid() {
			return fmt.Errorf("%w: unknown handling mode %q", ErrProtocol, m.HandlingMode)
		}
	case CmdDownload:
		if m.Filename == "" {
			return fmt.Errorf("%w: download frame missing filename", ErrProtocol)
		}
		if m.ResumeOffset < 0 {
			return fmt.Errorf("%w: download frame declares negative resume offset", ErrProtocol)
		}
	case CmdList:
		// No arguments.
	}
	return nil
}

func (m *Message) validateResponse() error {
	switch m.Status {
	case StatusReady, StatusSuccess:
	case StatusError:
		if m.Kind == "" {
			return fmt.Errorf("%w: error frame missing kind", ErrProtocol)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrProtocol, m.Status)
	}
	return nil
}
