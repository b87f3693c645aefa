package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// job is the bookkeeping for one data transfer.
type job struct {
	id      string
	op      Op
	remote  string
	local   string
	resume  ResumeMode
	offset  int64
	started time.Time
	log     *zap.Logger
}

func (c *Connection) newJob(op Op, remote, local string, resume ResumeMode) *job {
	j := &job{
		id:      newTransferID(),
		op:      op,
		remote:  remote,
		local:   local,
		resume:  resume,
		started: time.Now(),
	}
	j.log = c.log.With(zap.String("id", j.id), zap.Stringer("op", op), zap.String("path", remote))
	return j
}

// GetToMemory downloads path into memory and returns its content. Memory
// downloads always start at offset 0, resume is accepted for symmetry.
func (c *Connection) GetToMemory(remote string, progress ProgressFunc, resume ResumeMode) ([]byte, error) {
	j := c.newJob(OpRetrieve, remote, "", resume)
	if err := c.begin(j.op.String()); err != nil {
		return nil, err
	}
	defer c.end()
	c.setState(StatePreparing)

	if remote == "" || !resume.valid() {
		return nil, c.finish(j, nil, invalid(j, "empty path or bad resume mode"))
	}
	tr, err := c.session(j.op.String())
	if err != nil {
		return nil, c.finish(j, nil, err)
	}
	total, err := c.remoteSize(tr, remote)
	if err != nil {
		return nil, c.finish(j, nil, err)
	}
	if total < 0 {
		total = 0
	}

	cb := newMemoryCallback(c.gate, progress, c.maxMemory)
	cb.total = total
	err = c.run(j, tr, cb, &Request{Op: OpRetrieve, Path: remote, Total: total, Sink: cb})
	if err != nil {
		return nil, c.finish(j, cb, err)
	}
	data := cb.takeBuffer()
	if data == nil {
		data = []byte{}
	}
	return data, c.finish(j, cb, nil)
}

// GetToFile downloads path into the local file dst.
func (c *Connection) GetToFile(remote, dst string, progress ProgressFunc, resume ResumeMode) error {
	j := c.newJob(OpRetrieve, remote, dst, resume)
	if err := c.begin(j.op.String()); err != nil {
		return err
	}
	defer c.end()
	c.setState(StatePreparing)

	if remote == "" || dst == "" || !resume.valid() {
		return c.finish(j, nil, invalid(j, "empty path or bad resume mode"))
	}
	partial, err := localPartialSize(dst)
	if err != nil {
		return c.finish(j, nil, err)
	}
	tr, err := c.session(j.op.String())
	if err != nil {
		return c.finish(j, nil, err)
	}
	total, err := c.remoteSize(tr, remote)
	if err != nil {
		return c.finish(j, nil, err)
	}
	plan := planResume(resume, partial, total, total >= 0)
	j.offset = plan.offset
	if total < 0 {
		total = 0
	}

	f, err := openDestination(dst, plan.offset)
	if err != nil {
		return c.finish(j, nil, err)
	}
	cb := newFileCallback(Download, f, c.gate, progress, plan.offset)
	cb.total = total
	if plan.complete {
		j.log.Info("already complete", zap.Int64("size", total))
		return c.finish(j, cb, cb.report(total, total))
	}
	req := &Request{Op: OpRetrieve, Path: remote, Offset: plan.offset, Total: total, Sink: cb}
	return c.finish(j, cb, c.run(j, tr, cb, req))
}

// Put uploads the local file src to path.
func (c *Connection) Put(remote, src string, progress ProgressFunc, resume ResumeMode) error {
	j := c.newJob(OpStore, remote, src, resume)
	if err := c.begin(j.op.String()); err != nil {
		return err
	}
	defer c.end()
	c.setState(StatePreparing)

	if remote == "" || src == "" || !resume.valid() {
		return c.finish(j, nil, invalid(j, "empty path or bad resume mode"))
	}
	f, size, err := openSource(src)
	if err != nil {
		return c.finish(j, nil, err)
	}
	cb := newFileCallback(Upload, f, c.gate, progress, 0)
	cb.total = size

	tr, err := c.session(j.op.String())
	if err != nil {
		return c.finish(j, cb, err)
	}

	var plan resumePlan
	switch resume {
	case ResumeIfPossible:
		partial, known, err := c.remotePartialSize(tr, remote)
		if err != nil {
			return c.finish(j, cb, err)
		}
		plan = planResume(resume, partial, size, known)
	case ForceRestart:
		if _, err := tr.Command(VerbDelete, remote); err != nil && CodeOf(err) != CodeNotFound {
			return c.finish(j, cb, err)
		}
	}
	j.offset = plan.offset
	cb.offset = plan.offset
	if plan.complete {
		j.log.Info("already complete", zap.Int64("size", size))
		return c.finish(j, cb, cb.report(size, size))
	}
	if plan.offset > 0 {
		if _, err := f.Seek(plan.offset, io.SeekStart); err != nil {
			return c.finish(j, cb, newError(CodeLocalFile, "put", src, err))
		}
	}
	req := &Request{Op: OpStore, Path: remote, Offset: plan.offset, Total: size, Source: cb}
	return c.finish(j, cb, c.run(j, tr, cb, req))
}

// run executes the blocking transport call with cb as the data target.
func (c *Connection) run(j *job, tr Transport, cb *callbackData, req *Request) error {
	if c.gate.Signaled() {
		return newError(CodeCanceled, j.op.String(), j.remote, nil)
	}
	req.Progress = cb.report
	c.setState(StateTransferring)
	j.log.Debug("transfer start", zap.Int64("offset", req.Offset), zap.Int64("total", req.Total))
	return tr.Transfer(req)
}

// finish is the single exit of every transfer. It releases local
// resources, settles the outcome and notifies the observer.
func (c *Connection) finish(j *job, cb *callbackData, err error) error {
	var moved int64
	var cleanup error
	if cb != nil {
		moved = cb.moved
		if f := cb.release(); f != nil {
			cleanup = closeLocal(f, cb.dir == Download)
		}
		err = outcome(cb, err)
	}
	if err == nil && cleanup != nil {
		err = newError(CodeLocalFile, j.op.String(), j.local, cleanup)
	} else if cleanup != nil {
		j.log.Warn("cleanup", zap.Error(cleanup))
	}

	state := StateCompleted
	if err != nil {
		err = c.fail(err, j.op.String(), j.remote)
		state = StateFailed
		if CodeOf(err) == CodeCanceled {
			state = StateCanceled
		}
	}
	c.setState(state)

	fields := []zap.Field{zap.Int64("offset", j.offset), zap.Int64("bytes", moved), zap.Stringer("state", state)}
	if err != nil {
		j.log.Warn("transfer finished", append(fields, zap.Error(err))...)
	} else {
		j.log.Info("transfer finished", fields...)
	}

	if c.observer != nil {
		c.observer.TransferFinished(Report{
			ID:         j.id,
			Op:         j.op,
			RemotePath: j.remote,
			LocalPath:  j.local,
			Offset:     j.offset,
			Bytes:      moved,
			Started:    j.started,
			Elapsed:    time.Since(j.started),
			State:      state,
			Err:        err,
		})
	}
	return err
}

// outcome prefers what the callbacks saw over what the transport reports,
// since the transport only sees the abort or a wrapped write error.
func outcome(cb *callbackData, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(cb.err, ErrCanceled) || cb.gate.Signaled() {
		return newError(CodeCanceled, "", "", err)
	}
	if cb.err != nil {
		return cb.err
	}
	return err
}

func invalid(j *job, msg string) error {
	return newError(CodeInvalidArgument, j.op.String(), j.remote, errors.New(msg))
}

// remoteSize asks for the size of a file about to be downloaded. A missing
// file or a dead link is an error, a server without SIZE gives -1.
func (c *Connection) remoteSize(tr Transport, p string) (int64, error) {
	n, err := tr.Size(p)
	if err == nil {
		return n, nil
	}
	switch CodeOf(err) {
	case CodeNotFound, CodeConnection, CodeCanceled:
		return 0, err
	}
	c.log.Debug("size unavailable", zap.String("path", p), zap.Error(err))
	return -1, nil
}

// remotePartialSize asks for the size of a partial upload. A missing file
// means nothing was uploaded yet.
func (c *Connection) remotePartialSize(tr Transport, p string) (int64, bool, error) {
	n, err := tr.Size(p)
	if err == nil {
		return n, true, nil
	}
	switch CodeOf(err) {
	case CodeNotFound:
		return 0, true, nil
	case CodeConnection, CodeCanceled:
		return 0, false, err
	}
	return 0, false, nil
}

// localPartialSize returns the size of dst, or -1 when it does not exist.
func localPartialSize(dst string) (int64, error) {
	st, err := os.Stat(dst)
	if os.IsNotExist(err) {
		return -1, nil
	}
	if err != nil {
		return 0, newError(CodeLocalFile, "get", dst, err)
	}
	if !st.Mode().IsRegular() {
		return 0, newError(CodeInvalidArgument, "get", dst, fmt.Errorf("not a regular file"))
	}
	return st.Size(), nil
}

// openDestination opens dst for writing at offset, truncating whatever
// follows. The lock is taken before anything is truncated.
func openDestination(dst string, offset int64) (*os.File, error) {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, newError(CodeLocalFile, "get", dst, err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, newError(CodeLocalFile, "get", dst, fmt.Errorf("file is locked by another transfer: %w", err))
	}
	if err := f.Truncate(offset); err != nil {
		return nil, abandon(f, newError(CodeLocalFile, "get", dst, err))
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, abandon(f, newError(CodeLocalFile, "get", dst, err))
	}
	return f, nil
}

// openSource opens a readable regular file for upload.
func openSource(src string) (*os.File, int64, error) {
	st, err := os.Stat(src)
	if err != nil {
		return nil, 0, newError(CodeInvalidArgument, "put", src, err)
	}
	if !st.Mode().IsRegular() {
		return nil, 0, newError(CodeInvalidArgument, "put", src, fmt.Errorf("not a regular file"))
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, 0, newError(CodeInvalidArgument, "put", src, err)
	}
	return f, st.Size(), nil
}

func abandon(f *os.File, err error) error {
	_ = unlockFile(f)
	_ = f.Close()
	return err
}

// closeLocal unlocks, flushes and closes f, collecting every failure.
func closeLocal(f *os.File, written bool) error {
	var result *multierror.Error
	if written {
		if err := unlockFile(f); err != nil {
			result = multierror.Append(result, fmt.Errorf("unlock %s: %w", f.Name(), err))
		}
		if err := f.Sync(); err != nil {
			result = multierror.Append(result, fmt.Errorf("sync %s: %w", f.Name(), err))
		}
	}
	if err := f.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close %s: %w", f.Name(), err))
	}
	return result.ErrorOrNil()
}
