package recorder

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// fakeSource is a scriptable LiveSource. Nil funcs fall back to a live
// account whose room id equals the user name.
type fakeSource struct {
	resolveRoom func(ctx context.Context, user string) (string, error)
	resolveUser func(ctx context.Context, room string) (string, error)
	isLive      func(ctx context.Context, room string) (bool, error)
	liveURL     func(ctx context.Context, room string) (string, error)
	chunks      func(ctx context.Context, url string) (ChunkStream, error)
	blocked     bool

	resolveCalls atomic.Int32
	isLiveCalls  atomic.Int32
	chunkCalls   atomic.Int32
	blockCalls   atomic.Int32
}

func (f *fakeSource) ResolveRoom(ctx context.Context, user string) (string, error) {
	f.resolveCalls.Add(1)
	if f.resolveRoom != nil {
		return f.resolveRoom(ctx, user)
	}
	return user, nil
}

func (f *fakeSource) ResolveUser(ctx context.Context, room string) (string, error) {
	if f.resolveUser != nil {
		return f.resolveUser(ctx, room)
	}
	return "owner-" + room, nil
}

func (f *fakeSource) IsLive(ctx context.Context, room string) (bool, error) {
	f.isLiveCalls.Add(1)
	if f.isLive != nil {
		return f.isLive(ctx, room)
	}
	return true, nil
}

func (f *fakeSource) LiveURL(ctx context.Context, room string) (string, error) {
	if f.liveURL != nil {
		return f.liveURL(ctx, room)
	}
	return "https://pull.example/" + room + ".flv", nil
}

func (f *fakeSource) Chunks(ctx context.Context, url string) (ChunkStream, error) {
	f.chunkCalls.Add(1)
	if f.chunks != nil {
		return f.chunks(ctx, url)
	}
	return &sliceStream{}, nil
}

func (f *fakeSource) CountryBlocked(context.Context) (bool, error) {
	f.blockCalls.Add(1)
	return f.blocked, nil
}

// liveSequence answers IsLive from a script, repeating the last value.
func liveSequence(values ...bool) func(context.Context, string) (bool, error) {
	var (
		mu sync.Mutex
		i  int
	)
	return func(context.Context, string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v, nil
	}
}

// liveCycle answers IsLive by repeating pattern forever.
func liveCycle(pattern ...bool) func(context.Context, string) (bool, error) {
	var (
		mu sync.Mutex
		i  int
	)
	return func(context.Context, string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		v := pattern[i%len(pattern)]
		i++
		return v, nil
	}
}

// sliceStream yields fixed chunks, then err (io.EOF when nil).
type sliceStream struct {
	chunks [][]byte
	err    error
	panics bool
	closed atomic.Bool
}

func (s *sliceStream) Next() ([]byte, error) {
	if len(s.chunks) == 0 {
		if s.panics {
			panic("decoder exploded")
		}
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed.Store(true)
	return nil
}

// tickStream yields size-byte chunks every interval until ctx is done.
type tickStream struct {
	ctx      context.Context
	size     int
	interval time.Duration
}

func (s *tickStream) Next() ([]byte, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case <-time.After(s.interval):
		return make([]byte, s.size), nil
	}
}

func (s *tickStream) Close() error { return nil }

// chanStream yields chunks from ch and ends when ch is closed.
type chanStream struct {
	ctx context.Context
	ch  <-chan []byte
}

func (s *chanStream) Next() ([]byte, error) {
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case c, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return c, nil
	}
}

func (s *chanStream) Close() error { return nil }

type fakeTranscoder struct {
	mu     sync.Mutex
	inputs []string
	ctxErr []error
	err    error
}

func (f *fakeTranscoder) Convert(ctx context.Context, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	f.ctxErr = append(f.ctxErr, ctx.Err())
	if f.err != nil {
		return "", f.err
	}
	return ConvertedPath(input), nil
}

func (f *fakeTranscoder) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

type fakeUploader struct {
	mu      sync.Mutex
	sent    []string
	notices []string
	err     error
}

func (f *fakeUploader) Send(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, path)
	return f.err
}

func (f *fakeUploader) Notify(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, msg)
	return nil
}

func (f *fakeUploader) sentPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeUploader) noticeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices)
}
