package analytics_test

import (
	"bytes"
	"strings"
	"sync"
)

var bufMu sync.Mutex

// safeWriter guards a buffer the scheduler goroutine writes into.
type safeWriter struct {
	buf *bytes.Buffer
}

func (w *safeWriter) Write(p []byte) (int, error) {
	bufMu.Lock()
	defer bufMu.Unlock()
	return w.buf.Write(p)
}

func bytesContains(buf *bytes.Buffer, s string) bool {
	bufMu.Lock()
	defer bufMu.Unlock()
	return strings.Contains(buf.String(), s)
}
