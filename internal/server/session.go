package server

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"filehub/internal/protocol"
	"filehub/internal/storage"
)

// payloadChunkSize is the buffer used when streaming payload bytes, chosen so
// the idle deadline can be refreshed between chunks.
const payloadChunkSize = 32 * 1024

// session is the per-connection command state machine. It starts in
// AwaitCommand, handles one command at a time, and transitions to Closed on
// socket failure or client disconnect. The session owns its connection and
// any in-flight upload artifact exclusively.
type session struct {
	conn        net.Conn
	codec       *protocol.Codec
	store       *storage.Store
	idleTimeout time.Duration
	log         logrus.FieldLogger
}

func newSession(conn net.Conn, store *storage.Store, idleTimeout time.Duration, log logrus.FieldLogger) *session {
	return &session{
		conn:        conn,
		codec:       protocol.NewCodec(conn),
		store:       store,
		idleTimeout: idleTimeout,
		log:         log.WithField("remote", conn.RemoteAddr().String()),
	}
}

// run serves commands until the connection closes. Domain failures are
// answered with an error frame and leave the session in AwaitCommand; only
// transport failures end it.
func (s *session) run() {
	defer s.conn.Close()
	s.log.Info("New connection")

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			s.logDisconnect(err)
			return
		}
		msg, err := s.codec.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrProtocol) {
				// Frames are newline-delimited, so the stream is still in
				// sync after a malformed one.
				s.log.WithError(err).Warn("Rejected malformed frame")
				if err := s.sendError(protocol.KindProtocol, "Invalid request format"); err != nil {
					return
				}
				continue
			}
			s.logDisconnect(err)
			return
		}

		s.log.WithField("command", msg.Command).Info("Received command")

		switch msg.Command {
		case protocol.CmdUpload:
			err = s.handleUpload(msg)
		case protocol.CmdDownload:
			err = s.handleDownload(msg)
		case protocol.CmdList:
			err = s.handleList()
		default:
			s.log.WithField("command", msg.Command).Warn("Invalid command")
			err = s.sendError(protocol.KindUnknownCommand, "Invalid command")
		}
		if err != nil {
			s.logDisconnect(err)
			return
		}
	}
}

func (s *session) logDisconnect(err error) {
	if err == io.EOF {
		s.log.Info("Connection closed by client")
		return
	}
	s.log.WithError(err).Warn("Connection closed")
}

// handleUpload runs UploadNegotiate → UploadReceiving → UploadVerify. The
// returned error is non-nil only for transport failures.
func (s *session) handleUpload(msg *protocol.Message) error {
	mode := msg.HandlingMode
	if mode == "" {
		mode = protocol.ModeOverwrite
	}

	log := s.log.WithFields(logrus.Fields{
		"filename": msg.Filename,
		"filesize": msg.Filesize,
		"mode":     mode,
	})
	log.Info("Upload requested")

	finalName := msg.Filename
	isDuplicate := s.store.Exists(msg.Filename)
	if isDuplicate {
		switch mode {
		case protocol.ModeRename:
			finalName = s.store.NextRenameName(msg.Filename)
			log.WithField("renamed_to", finalName).Info("File exists, upload renamed")
		case protocol.ModeVersioning:
			if _, err := s.store.ArchiveMove(msg.Filename, time.Now()); err != nil {
				log.WithError(err).Error("Failed to archive current version")
				return s.sendError(protocol.KindIO, "Failed to archive current version")
			}
		default:
			log.Info("File exists, will be overwritten")
		}
	}

	if err := s.send(&protocol.Message{
		Status:       protocol.StatusReady,
		Filename:     finalName,
		IsDuplicate:  isDuplicate,
		HandlingMode: mode,
	}); err != nil {
		return err
	}

	tmp, err := s.store.CreateTemp()
	if err != nil {
		log.WithError(err).Error("Failed to create upload artifact")
		// Ready was already sent, so the client is streaming. Drain the
		// declared bytes to keep the next frame on a frame boundary.
		if derr := s.receivePayload(io.Discard, msg.Filesize); derr != nil {
			return derr
		}
		return s.sendError(protocol.KindIO, "Server storage error")
	}

	if err := s.receivePayload(tmp, msg.Filesize); err != nil {
		// The temporary artifact never survives a failed stream, and a dead
		// socket gets no reply.
		s.store.Discard(tmp)
		log.WithError(err).Error("Upload stream failed")
		return err
	}

	sum := tmp.Sum()
	if sum != msg.Hash {
		s.store.Discard(tmp)
		log.WithFields(logrus.Fields{
			"expected_hash": msg.Hash,
			"received_hash": sum,
		}).Error("File corruption detected")
		return s.sendError(protocol.KindHashMismatch, "File corruption detected")
	}

	if err := s.store.Promote(tmp, finalName); err != nil {
		s.store.Discard(tmp)
		log.WithError(err).Error("Failed to promote upload")
		return s.sendError(protocol.KindIO, "Server storage error")
	}

	log.WithField("final_name", finalName).Info("File uploaded successfully")
	return s.send(&protocol.Message{
		Status: protocol.StatusSuccess,
		Detail: "File " + finalName + " uploaded successfully",
		Hash:   sum,
	})
}

// receivePayload streams exactly size declared bytes into dst, refreshing the
// idle deadline between chunks.
func (s *session) receivePayload(dst io.Writer, size int64) error {
	src := s.codec.PayloadReader(size)
	buf := make([]byte, payloadChunkSize)

	var received int64
	for received < size {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			received += int64(n)
		}
		if err != nil {
			if err == io.EOF && received == size {
				break
			}
			return err
		}
	}
	return nil
}

// handleDownload runs DownloadNegotiate → DownloadSending. Completion is
// signaled purely by having sent exactly size−offset bytes.
func (s *session) handleDownload(msg *protocol.Message) error {
	log := s.log.WithField("filename", msg.Filename)

	rc, size, offset, hash, err := s.store.OpenRange(msg.Filename, msg.ResumeOffset)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			log.Warn("Requested file not found")
			return s.sendError(protocol.KindNotFound, "File not found: "+msg.Filename)
		}
		log.WithError(err).Error("Failed to open file for download")
		return s.sendError(protocol.KindIO, "Server storage error")
	}
	defer rc.Close()

	if offset > 0 {
		log.WithField("offset", offset).Info("Resuming download")
	}

	if err := s.send(&protocol.Message{
		Status:       protocol.StatusReady,
		Filesize:     size,
		Hash:         hash,
		ResumingFrom: offset,
	}); err != nil {
		return err
	}

	// The client confirms readiness before raw bytes flow, so a client that
	// changed its mind leaves the stream in sync.
	if err := s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
		return err
	}
	ack, err := s.codec.ReadMessage()
	if err != nil {
		return err
	}
	if ack.Status != protocol.StatusReady {
		log.Warn("Client not ready to receive file")
		return nil
	}

	if err := s.sendPayload(rc, size-offset); err != nil {
		log.WithError(err).Error("Download stream failed")
		return err
	}
	log.WithField("bytes", size-offset).Info("File sent successfully")
	return nil
}

// sendPayload streams exactly size bytes from src to the connection,
// refreshing the write deadline between chunks.
func (s *session) sendPayload(src io.Reader, size int64) error {
	buf := make([]byte, payloadChunkSize)

	var sent int64
	for sent < size {
		chunk := int64(len(buf))
		if remaining := size - sent; remaining < chunk {
			chunk = remaining
		}
		n, err := io.ReadFull(src, buf[:chunk])
		if err != nil {
			return err
		}
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			return err
		}
		if _, err := s.conn.Write(buf[:n]); err != nil {
			return err
		}
		sent += int64(n)
	}
	return nil
}

// handleList serves a ListHandling round trip.
func (s *session) handleList() error {
	records, err := s.store.List()
	if err != nil {
		s.log.WithError(err).Error("Failed to list storage")
		return s.sendError(protocol.KindIO, "Server storage error")
	}

	s.log.WithField("count", len(records)).Info("Sent file list")
	return s.send(&protocol.Message{
		Status: protocol.StatusSuccess,
		Files:  records,
	})
}

func (s *session) send(msg *protocol.Message) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.idleTimeout)); err != nil {
		return err
	}
	return s.codec.WriteMessage(msg)
}

func (s *session) sendError(kind protocol.Kind, detail string) error {
	return s.send(&protocol.Message{
		Status: protocol.StatusError,
		Kind:   kind,
		Detail: detail,
	})
}
