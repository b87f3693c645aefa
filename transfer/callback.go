package transfer

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Direction of a data transfer.
type Direction int

const (
	Download Direction = iota
	Upload
)

// Progress carries absolute positions, resume offset included.
type Progress struct {
	DownloadTotal int64
	Downloaded    int64
	UploadTotal   int64
	Uploaded      int64
}

// ProgressFunc receives progress updates. Values never decrease within a
// single call.
type ProgressFunc func(Progress)

// callbackData is the state threaded through one get, put or list call.
// Exactly one of buf and file is set for a download.
type callbackData struct {
	dir      Direction
	buf      *bytes.Buffer
	file     *os.File
	gate     *Gate
	progress ProgressFunc

	maxMemory int64
	offset    int64
	total     int64
	moved     int64
	last      Progress
	err       error
}

func newMemoryCallback(gate *Gate, progress ProgressFunc, maxMemory int64) *callbackData {
	return &callbackData{
		dir:       Download,
		buf:       new(bytes.Buffer),
		gate:      gate,
		progress:  progress,
		maxMemory: maxMemory,
	}
}

func newFileCallback(dir Direction, f *os.File, gate *Gate, progress ProgressFunc, offset int64) *callbackData {
	return &callbackData{
		dir:      dir,
		file:     f,
		gate:     gate,
		progress: progress,
		offset:   offset,
	}
}

// abort checks the gate and records the canceled outcome.
func (cb *callbackData) abort() bool {
	if !cb.gate.Signaled() {
		return false
	}
	if cb.err == nil {
		cb.err = ErrCanceled
	}
	return true
}

// Write is the download sink.
func (cb *callbackData) Write(p []byte) (n int, err error) {
	if cb.abort() {
		return 0, ErrAbortTransfer
	}
	switch {
	case cb.buf != nil:
		n, err = cb.writeMemory(p)
	case cb.file != nil:
		n, err = cb.file.Write(p)
		if err != nil {
			err = newError(CodeLocalFile, "write", cb.file.Name(), err)
		}
	default:
		err = newError(CodeInvalidArgument, "write", "", fmt.Errorf("no sink"))
	}
	cb.moved += int64(n)
	if err != nil && cb.err == nil {
		cb.err = err
	}
	return n, err
}

func (cb *callbackData) writeMemory(p []byte) (n int, err error) {
	if cb.maxMemory > 0 && int64(cb.buf.Len())+int64(len(p)) > cb.maxMemory {
		return 0, newError(CodeNoMemory, "write", "", fmt.Errorf("buffer limit %d bytes reached", cb.maxMemory))
	}
	defer func() {
		if r := recover(); r != nil {
			if r != bytes.ErrTooLarge {
				panic(r)
			}
			n, err = 0, newError(CodeNoMemory, "write", "", bytes.ErrTooLarge)
		}
	}()
	return cb.buf.Write(p)
}

// Read is the upload source.
func (cb *callbackData) Read(p []byte) (int, error) {
	if cb.abort() {
		return 0, ErrAbortTransfer
	}
	if cb.file == nil {
		return 0, newError(CodeInvalidArgument, "read", "", fmt.Errorf("no source"))
	}
	n, err := cb.file.Read(p)
	cb.moved += int64(n)
	if err != nil && err != io.EOF {
		err = newError(CodeLocalFile, "read", cb.file.Name(), err)
		if cb.err == nil {
			cb.err = err
		}
	}
	return n, err
}

// report is the progress hook handed to the transport. done and total are
// absolute positions in the remote file.
func (cb *callbackData) report(done, total int64) error {
	if cb.abort() {
		return ErrAbortTransfer
	}
	p := cb.last
	if cb.dir == Download {
		p.DownloadTotal = total
		if done > p.Downloaded {
			p.Downloaded = done
		}
	} else {
		p.UploadTotal = total
		if done > p.Uploaded {
			p.Uploaded = done
		}
	}
	cb.last = p
	if cb.progress != nil {
		cb.progress(p)
	}
	return nil
}

// takeBuffer hands the accumulated bytes over once.
func (cb *callbackData) takeBuffer() []byte {
	if cb.buf == nil {
		return nil
	}
	out := cb.buf.Bytes()
	cb.buf = nil
	return out
}

// release drops the buffer and returns the file, if any, for the caller to close.
func (cb *callbackData) release() *os.File {
	cb.buf = nil
	f := cb.file
	cb.file = nil
	return f
}
