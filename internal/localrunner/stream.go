package localrunner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"pkt.systems/conch/core"
	"pkt.systems/pslog"
)

// maxLineBytes bounds one output line. Longer lines arrive as several
// chunks so the pipe keeps draining.
const maxLineBytes = 64 * 1024

// splitLines is bufio.ScanLines with an upper bound on the token size. A
// chunk never ends inside a UTF-8 sequence.
func splitLines(limit int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		window := data
		if len(window) > limit {
			window = window[:limit]
		}
		if i := bytes.IndexByte(window, '\n'); i >= 0 {
			return i + 1, data[:i], nil
		}
		if len(data) >= limit {
			n := runeCut(data[:limit])
			return n, data[:n], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// runeCut returns the length of b without a trailing partial rune.
func runeCut(b []byte) int {
	n := len(b)
	for i := n - 1; i >= 0 && i >= n-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) || i == 0 {
			return n
		}
		return i
	}
	return n
}

// combinedStream merges stdout and stderr lines in arrival order.
type combinedStream struct {
	lines     chan core.CommandOutput
	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
	wg        sync.WaitGroup
	log       pslog.Logger
}

func newCombinedStream(log pslog.Logger, stdout io.Reader, stderr io.Reader) *combinedStream {
	stream := &combinedStream{
		lines: make(chan core.CommandOutput, 256),
		done:  make(chan struct{}),
		log:   log,
	}
	for _, src := range []struct {
		reader io.Reader
		kind   core.CommandStreamKind
	}{
		{stdout, core.CommandStreamStdout},
		{stderr, core.CommandStreamStderr},
	} {
		if src.reader == nil {
			continue
		}
		stream.wg.Add(1)
		go stream.read(src.reader, src.kind)
	}
	go func() {
		stream.wg.Wait()
		close(stream.lines)
	}()
	return stream
}

func (s *combinedStream) read(reader io.Reader, kind core.CommandStreamKind) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*maxLineBytes)
	scanner.Split(splitLines(maxLineBytes))
	count := 0
	for scanner.Scan() {
		text := strings.TrimSuffix(scanner.Text(), "\r")
		count++
		select {
		case s.lines <- core.CommandOutput{Stream: kind, Text: text}:
		case <-s.done:
			return
		}
	}
	if err := scanner.Err(); err != nil && !isClosedPipe(err) {
		s.log.Warn("runner output read failed", "stream", kind, "err", err)
		s.setErr(err)
		// The child blocks on a full pipe otherwise and never exits.
		_, _ = io.Copy(io.Discard, reader)
	}
	s.log.Trace("runner output completed", "stream", kind, "lines", count)
}

func (s *combinedStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *combinedStream) Next(ctx context.Context) (core.CommandOutput, error) {
	select {
	case <-ctx.Done():
		return core.CommandOutput{}, ctx.Err()
	case out, ok := <-s.lines:
		if ok {
			return out, nil
		}
		s.errMu.Lock()
		err := s.err
		s.errMu.Unlock()
		if err != nil {
			return core.CommandOutput{}, err
		}
		return core.CommandOutput{}, io.EOF
	}
}

// Close unblocks readers once the consumer stops draining.
func (s *combinedStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// isClosedPipe reports read errors caused by the process going away. A pty
// master returns EIO once the child exits.
func isClosedPipe(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || strings.Contains(err.Error(), "input/output error")
}
