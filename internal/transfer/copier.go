package transfer

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fileferry/fileferry/internal/diskspace"
)

// copyFile transfers one task's bytes from source to destination. It
// reports progress through the sink at most once per sample interval,
// honors pause and cancellation between buffer writes, and removes the
// partially written destination when the copy does not complete. The
// returned error is already classified: nil, skipError, PerFileError,
// JobFatalError, or the context's error.
func (w *Worker) copyFile(ctx context.Context, job *Job, task *FileTask) error {
	if w.check != nil {
		if err := w.check(task.AbsDst, task.Size, w.cfg.SpaceMargin); err != nil {
			if diskspace.IsInsufficientSpaceError(err) {
				return &JobFatalError{Err: err}
			}
			return &PerFileError{Path: task.RelPath, Err: err}
		}
	}

	if err := os.MkdirAll(filepath.Dir(task.AbsDst), 0o755); err != nil {
		return classifyDestError(task.RelPath, err)
	}

	src, err := os.Open(task.AbsSrc)
	if err != nil {
		return classifySrcError(task.RelPath, err)
	}
	defer src.Close()

	perm := task.Mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	dst, err := os.OpenFile(task.AbsDst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return classifyDestError(task.RelPath, err)
	}

	hasher := crc32.NewIEEE()
	copyErr := w.copyLoop(ctx, task, src, dst, hasher)

	if copyErr == nil && w.cfg.Fsync {
		if syncErr := dst.Sync(); syncErr != nil {
			copyErr = classifyDestError(task.RelPath, syncErr)
		}
	}
	if closeErr := dst.Close(); closeErr != nil && copyErr == nil {
		copyErr = classifyDestError(task.RelPath, closeErr)
	}
	if copyErr != nil {
		w.removePartial(task)
		return copyErr
	}

	if job.Spec.Options.Verify {
		// An unverified destination counts as incomplete, so it is
		// removed even when verification was merely cancelled.
		if err := w.verifyChecksum(ctx, task, hasher.Sum32()); err != nil {
			w.removePartial(task)
			return err
		}
	}

	if w.cfg.PreserveModTime && !task.ModTime.IsZero() {
		if err := os.Chtimes(task.AbsDst, time.Now(), task.ModTime); err != nil {
			log.Debug().Err(err).Str("file", task.RelPath).Msg("could not preserve modification time")
		}
	}

	if job.Spec.Options.RemoveSource {
		// Destination is complete and verified at this point, so a
		// failed source removal leaves the copy in place.
		if err := os.Remove(task.AbsSrc); err != nil {
			return &PerFileError{Path: task.RelPath, Err: fmt.Errorf("removing source after copy: %w", err)}
		}
	}

	return nil
}

// copyLoop runs the buffered read/write cycle. Pause and cancellation
// are checked before every read, so the worker reacts within a single
// buffer write. The source checksum accumulates as bytes stream through
// rather than in a second read pass.
func (w *Worker) copyLoop(ctx context.Context, task *FileTask, src io.Reader, dst io.Writer, hasher io.Writer) error {
	var lastSample time.Time
	for {
		if err := w.gate.Wait(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := src.Read(w.buf)
		if n > 0 {
			if _, writeErr := dst.Write(w.buf[:n]); writeErr != nil {
				return classifyDestError(task.RelPath, writeErr)
			}
			hasher.Write(w.buf[:n])
			task.BytesCopied += int64(n)
			if task.BytesCopied > task.Size {
				// Source grew after enumeration.
				task.Size = task.BytesCopied
			}
			now := w.clk.Now()
			if lastSample.IsZero() || now.Sub(lastSample) >= w.cfg.SampleInterval {
				lastSample = now
				w.sink.TaskProgress(task.Clone())
			}
		}
		if readErr == io.EOF {
			if task.BytesCopied < task.Size {
				// Source shrank after enumeration.
				task.Size = task.BytesCopied
			}
			return nil
		}
		if readErr != nil {
			return &PerFileError{Path: task.RelPath, Err: readErr}
		}
	}
}

// verifyChecksum re-reads the destination and compares its CRC-32
// against the checksum accumulated from the source during the copy.
// v1.1.0: Added for the --verify flag.
func (w *Worker) verifyChecksum(ctx context.Context, task *FileTask, want uint32) error {
	f, err := os.Open(task.AbsDst)
	if err != nil {
		return classifyDestError(task.RelPath, err)
	}
	defer f.Close()

	h := crc32.NewIEEE()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, readErr := f.Read(w.buf)
		if n > 0 {
			h.Write(w.buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &PerFileError{Path: task.RelPath, Err: readErr}
		}
	}
	if got := h.Sum32(); got != want {
		return &PerFileError{
			Path: task.RelPath,
			Err:  fmt.Errorf("checksum mismatch: source %08x, destination %08x", want, got),
		}
	}
	return nil
}

// removePartial deletes an incomplete destination file and rolls the
// task's byte count back so job totals do not include discarded bytes.
func (w *Worker) removePartial(task *FileTask) {
	if err := os.Remove(task.AbsDst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("file", task.RelPath).Msg("could not remove partial destination file")
	}
	task.BytesCopied = 0
}
