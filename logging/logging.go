// Package logging wires the stdlib logger to stdout plus a size-capped
// file so daemon runs keep a local trail without unbounded growth.
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

const defaultMaxBytes = 2 * 1024 * 1024 // 2MB

// RotatingWriter appends to a single log file and swaps it for a fresh
// one once it crosses the size cap, keeping the previous file as ".1".
type RotatingWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
	size int64
	cap  int64
}

// Setup opens (or creates) logPath and points the stdlib logger at both
// stdout and the file. A file already over the cap is truncated first.
func Setup(logPath string) (*RotatingWriter, error) {
	if info, err := os.Stat(logPath); err == nil && info.Size() > defaultMaxBytes {
		os.Truncate(logPath, 0)
	}

	f, err := openAppend(logPath)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	rw := &RotatingWriter{
		file: f,
		path: logPath,
		size: size,
		cap:  defaultMaxBytes,
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	return rw, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)

	if w.size > w.cap {
		w.rotate()
	}

	return n, err
}

// rotate keeps one backup. Failures leave the old handle closed and the
// next Write erroring, which the stdlib logger tolerates.
func (w *RotatingWriter) rotate() {
	w.file.Close()
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
