package client

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"filehub/internal/protocol"
	"filehub/pkg/types"
	"filehub/pkg/utils"
)

// PartSuffix marks a durable in-progress download next to its final name.
// The part file's length is the single source of truth for the resume
// offset; no separate ledger exists.
const PartSuffix = ".part"

// UploadResult reports the outcome of a verified upload.
type UploadResult struct {
	Filename    string // Final name on the server; differs under rename
	Hash        string
	IsDuplicate bool
	Mode        protocol.HandlingMode
}

// Upload sends the file at path to the server under the given duplicate
// handling mode and waits for the verified outcome.
func (c *Client) Upload(path string, mode protocol.HandlingMode) (*UploadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}

	hash, err := utils.HashFile(path)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(path)
	filesize := info.Size()
	c.log.WithFields(logrus.Fields{
		"filename": filename,
		"filesize": filesize,
		"mode":     mode,
	}).Info("Preparing upload")

	resp, err := c.sendRequest(&protocol.Message{
		Command:      protocol.CmdUpload,
		Filename:     filename,
		Filesize:     filesize,
		Hash:         hash,
		HandlingMode: mode,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != protocol.StatusReady {
		return nil, fmt.Errorf("%w: server not ready to receive file", ErrUnexpectedReply)
	}

	finalName := resp.Filename
	if finalName == "" {
		finalName = filename
	}
	if resp.IsDuplicate {
		c.logDuplicate(filename, finalName, resp.HandlingMode)
	}

	if err := c.streamFile(path, finalName, filesize); err != nil {
		return nil, err
	}

	c.conn.SetReadDeadline(time.Now().Add(c.cfg.OpTimeout))
	result, err := c.codec.ReadMessage()
	if err != nil {
		return nil, classify(err)
	}
	if result.Status != protocol.StatusSuccess {
		return nil, &protocol.RemoteError{Kind: result.Kind, Detail: result.Detail}
	}

	c.log.WithField("filename", finalName).Info("File uploaded successfully")
	return &UploadResult{
		Filename:    finalName,
		Hash:        result.Hash,
		IsDuplicate: resp.IsDuplicate,
		Mode:        resp.HandlingMode,
	}, nil
}

func (c *Client) logDuplicate(filename, finalName string, mode protocol.HandlingMode) {
	log := c.log.WithField("filename", filename)
	switch mode {
	case protocol.ModeRename:
		log.WithField("renamed_to", finalName).Info("File already exists, renamed")
	case protocol.ModeVersioning:
		log.Info("File already exists, previous version archived")
	default:
		log.Info("File already exists, will be overwritten")
	}
}

// streamFile sends the file content in fixed-size chunks, reporting progress
// after each chunk. Mid-stream failures are not resent; the caller reissues
// the whole command.
func (c *Client) streamFile(path, finalName string, filesize int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	c.reporter.Start("upload", finalName, filesize)

	dst := c.codec.PayloadWriter()
	buf := make([]byte, c.cfg.ChunkSize)
	var sent int64
	for sent < filesize {
		n, err := f.Read(buf)
		if n > 0 {
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.OpTimeout))
			if _, werr := dst.Write(buf[:n]); werr != nil {
				werr = classify(werr)
				c.reporter.Done(werr)
				return werr
			}
			sent += int64(n)
			c.reporter.Update(sent)
		}
		if err != nil {
			if err == io.EOF && sent == filesize {
				break
			}
			c.reporter.Done(err)
			return fmt.Errorf("failed to read file during upload: %w", err)
		}
	}

	c.reporter.Done(nil)
	return nil
}

// Download fetches name into the download directory and returns the saved
// path. An existing part file resumes automatically: its byte length is the
// resume offset sent to the server. The final name appears only after the
// content hash verifies.
func (c *Client) Download(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if err := os.MkdirAll(c.cfg.DownloadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	partPath := filepath.Join(c.cfg.DownloadDir, name+PartSuffix)
	finalPath := filepath.Join(c.cfg.DownloadDir, name)

	var offset int64
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}

	log := c.log.WithField("filename", name)
	if offset > 0 {
		log.WithField("offset", offset).Info("Resuming download from partial file")
	}

	resp, err := c.sendRequest(&protocol.Message{
		Command:      protocol.CmdDownload,
		Filename:     name,
		ResumeOffset: offset,
	})
	if err != nil {
		return "", err
	}
	if resp.Status != protocol.StatusReady {
		return "", fmt.Errorf("%w: server not ready to send file", ErrUnexpectedReply)
	}

	size := resp.Filesize
	resuming := resp.ResumingFrom

	// Confirm readiness; the raw payload follows immediately.
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.OpTimeout))
	if err := c.codec.WriteMessage(&protocol.Message{Status: protocol.StatusReady}); err != nil {
		return "", classify(err)
	}

	if err := c.receiveFile(partPath, name, size, resuming); err != nil {
		return "", err
	}

	sum, err := utils.HashFile(partPath)
	if err != nil {
		return "", err
	}
	if sum != resp.Hash {
		// No partial data survives a failed verification; the next attempt
		// restarts from offset 0.
		os.Remove(partPath)
		log.WithFields(logrus.Fields{
			"expected_hash": resp.Hash,
			"received_hash": sum,
		}).Error("File corruption detected")
		return "", ErrCorrupted
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		return "", fmt.Errorf("failed to finalize download: %w", err)
	}
	log.Info("File downloaded successfully")
	return finalPath, nil
}

// receiveFile appends the payload stream to the part file. The server may
// have fallen back to offset 0 (stale or invalid resume offset), in which
// case the part file starts over.
func (c *Client) receiveFile(partPath, name string, size, resuming int64) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if resuming == 0 {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(partPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open partial file: %w", err)
	}
	defer f.Close()

	c.reporter.Start("download", name, size)
	c.reporter.Update(resuming)

	src := c.codec.PayloadReader(size - resuming)
	buf := make([]byte, c.cfg.ChunkSize)
	received := resuming
	for received < size {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.OpTimeout))
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				werr = fmt.Errorf("failed to write partial file: %w", werr)
				c.reporter.Done(werr)
				return werr
			}
			received += int64(n)
			c.reporter.Update(received)
		}
		if err != nil {
			if err == io.EOF && received == size {
				break
			}
			// Bytes written so far stay in the part file; the next download
			// of the same name resumes from here.
			err = classify(err)
			c.reporter.Done(err)
			return err
		}
	}

	c.reporter.Done(nil)
	return nil
}

// List fetches the server's file records, version history included.
func (c *Client) List() ([]types.FileRecord, error) {
	resp, err := c.sendRequest(&protocol.Message{Command: protocol.CmdList})
	if err != nil {
		return nil, err
	}
	if resp.Status != protocol.StatusSuccess {
		return nil, fmt.Errorf("%w: expected file list", ErrUnexpectedReply)
	}
	return resp.Files, nil
}

// Versions returns the archived revisions of name, oldest first.
func (c *Client) Versions(name string) ([]types.VersionRecord, error) {
	records, err := c.List()
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.Filename == name {
			return record.Versions, nil
		}
	}
	return nil, fmt.Errorf("file not found: %s", name)
}
