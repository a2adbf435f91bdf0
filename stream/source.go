package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Source is a stream backed by a producer of bytes. It reports EOF once the
// producer is exhausted and everything buffered has been consumed. Data and
// trees appended to a source are delivered after the producer's bytes.
type Source struct {
	*core
	r       io.Reader
	closer  io.Closer
	after   Queue
	drained bool
}

// NewReader returns a source stream reading from r. A read that returns no
// bytes and no error is reported as EOD.
func NewReader(name string, r io.Reader) *Source {
	s := &Source{core: newCore(name), r: r}
	s.core.more = s.fill
	s.core.done = func() bool { return s.drained && s.after.Len() == 0 }
	s.core.appendQueue = func() *Queue {
		if s.drained {
			return &s.core.queue
		}
		return &s.after
	}
	return s
}

// Open returns a source stream reading the named file.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	s := NewReader(path, f)
	s.closer = f
	return s, nil
}

// NewText returns a source stream over a copy of data.
func NewText(name string, data []byte) *Source {
	s := NewReader(name, bytes.NewReader(nil))
	s.drained = true
	if len(data) > 0 {
		s.core.queue.PushTail(dataBuf(data))
	}
	return s
}

func (s *Source) fill() *RunBuf {
	if s.drained {
		return nil
	}
	buf := make([]byte, BufSize)
	n, err := s.r.Read(buf)
	var b *RunBuf
	if n > 0 {
		b = &RunBuf{Kind: BufData, Data: buf[:n]}
		s.core.queue.PushTail(b)
	}
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.Errorf("%s: read: %s", s.core.name, err.Error())
			s.core.err = err
		}
		s.drained = true
		if first := s.core.queue.moveAll(&s.after); b == nil {
			b = first
		}
	}
	return b
}

// Close closes the underlying file of a stream returned by Open.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Collector is the writing end of a stream created by NewCollector. Bytes
// written become input; an empty collector reports EOD until it is closed.
type Collector struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewCollector returns a source stream fed by the returned collector.
func NewCollector(name string) (*Source, *Collector) {
	c := &Collector{}
	return NewReader(name, c), c
}

func (c *Collector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errors.New("write to closed collector")
	}
	return c.buf.Write(p)
}

func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Collector) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() == 0 {
		if c.closed {
			return 0, io.EOF
		}
		return 0, nil
	}
	return c.buf.Read(p)
}

// Generic is a composite stream: data blocks, trees and nested streams in
// queue order. At the end of its queue it reports EOF once SetEOF was
// called, otherwise EOD.
type Generic struct {
	*core
}

// New returns an empty generic stream.
func New(name string) *Generic {
	return &Generic{core: newCore(name)}
}
