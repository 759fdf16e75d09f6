package recorder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec(t *testing.T) RecordingSpec {
	t.Helper()
	return RecordingSpec{
		Mode:       ModeManual,
		OutputDir:  t.TempDir(),
		FilePrefix: "TK",
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSession_RecordsUntilBroadcastEnds(t *testing.T) {
	chunk := bytes.Repeat([]byte{0x46}, 200*kib)
	stream := &sliceStream{chunks: [][]byte{chunk, chunk, chunk}}
	src := &fakeSource{
		// initial check, first loop pass, then offline
		isLive: liveSequence(true, true, false),
		chunks: func(context.Context, string) (ChunkStream, error) { return stream, nil },
	}
	tr := &fakeTranscoder{}
	up := &fakeUploader{}
	spec := testSpec(t)
	spec.Deliver = true
	handle := NewSessionHandle("bob")

	s := NewSession(spec, Account{User: "bob", RoomID: "r-bob"}, Dependencies{
		Source:     src,
		Transcoder: tr,
		Uploader:   up,
	}, handle)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, PhaseDone, s.Phase())
	assert.EqualValues(t, 600*kib, fileSize(t, s.Path()))
	assert.Equal(t, 1, s.Stats().Flushes)
	assert.True(t, stream.closed.Load())
	assert.True(t, filepath.Base(s.Path()) != "" && filepath.Dir(s.Path()) == spec.OutputDir)
	assert.Contains(t, filepath.Base(s.Path()), "TK_bob_")

	assert.Equal(t, []string{s.Path()}, tr.calls())
	assert.Equal(t, []string{ConvertedPath(s.Path())}, up.sentPaths())

	info := handle.Info()
	assert.EqualValues(t, 600*kib, info.Bytes)
	assert.Equal(t, PhaseDone, info.Phase)
	assert.Equal(t, ConvertedPath(s.Path()), info.Path)
}

func TestSession_NotLive(t *testing.T) {
	src := &fakeSource{isLive: liveSequence(false)}
	tr := &fakeTranscoder{}
	spec := testSpec(t)

	s := NewSession(spec, Account{User: "alice", RoomID: "r1"}, Dependencies{Source: src, Transcoder: tr}, nil)
	err := s.Run(context.Background())

	require.ErrorIs(t, err, ErrNotLive)
	assert.Equal(t, PhaseFailed, s.Phase())
	assert.Empty(t, dirEntries(t, spec.OutputDir))
	assert.Empty(t, tr.calls())
	assert.Zero(t, src.chunkCalls.Load())
}

func TestSession_LiveURLUnavailable(t *testing.T) {
	testCases := []struct {
		name    string
		liveURL func(context.Context, string) (string, error)
		want    error
	}{
		{
			name:    "empty url",
			liveURL: func(context.Context, string) (string, error) { return "", nil },
			want:    ErrLiveURLUnavailable,
		},
		{
			name:    "lookup failure",
			liveURL: func(context.Context, string) (string, error) { return "", errors.New("no flv_pull_url") },
			want:    ErrLiveURLUnavailable,
		},
		{
			name: "transport failure",
			liveURL: func(context.Context, string) (string, error) {
				return "", errors.Join(ErrConnection, errors.New("reset by peer"))
			},
			want: ErrConnection,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := testSpec(t)
			src := &fakeSource{liveURL: tc.liveURL}
			err := NewSession(spec, Account{User: "alice", RoomID: "r1"}, Dependencies{Source: src}, nil).Run(context.Background())
			require.ErrorIs(t, err, tc.want)
			assert.Empty(t, dirEntries(t, spec.OutputDir))
		})
	}
}

func TestSession_MaxDuration(t *testing.T) {
	src := &fakeSource{
		chunks: func(ctx context.Context, _ string) (ChunkStream, error) {
			return &tickStream{ctx: ctx, size: 1024, interval: 5 * time.Millisecond}, nil
		},
	}
	spec := testSpec(t)
	spec.MaxDuration = 300 * time.Millisecond

	s := NewSession(spec, Account{User: "carol", RoomID: "r3"}, Dependencies{Source: src}, nil)
	start := time.Now()
	require.NoError(t, s.Run(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, spec.MaxDuration)
	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, PhaseDone, s.Phase())
	assert.Positive(t, fileSize(t, s.Path()))
}

func TestSession_StopSignalStillFinalizes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{
		chunks: func(ctx context.Context, _ string) (ChunkStream, error) {
			return &tickStream{ctx: ctx, size: 4096, interval: 5 * time.Millisecond}, nil
		},
	}
	tr := &fakeTranscoder{}
	s := NewSession(testSpec(t), Account{User: "dave", RoomID: "r4"}, Dependencies{Source: src, Transcoder: tr}, nil)

	time.AfterFunc(100*time.Millisecond, cancel)
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, PhaseDone, s.Phase())
	stats := s.Stats()
	assert.Positive(t, stats.BytesAccepted)
	assert.Equal(t, stats.BytesAccepted, fileSize(t, s.Path()))
	require.Len(t, tr.calls(), 1)
	assert.NoError(t, tr.ctxErr[0], "post-processing must not inherit the stop signal")
}

func TestSession_ConnectionDropKeepsData(t *testing.T) {
	stream := &sliceStream{
		chunks: [][]byte{[]byte("abc"), []byte("def")},
		err:    errors.New("unexpected EOF"),
	}
	src := &fakeSource{chunks: func(context.Context, string) (ChunkStream, error) { return stream, nil }}
	tr := &fakeTranscoder{}

	s := NewSession(testSpec(t), Account{User: "erin", RoomID: "r5"}, Dependencies{Source: src, Transcoder: tr}, nil)
	err := s.Run(context.Background())

	require.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, PhaseFailed, s.Phase())
	data, readErr := os.ReadFile(s.Path())
	require.NoError(t, readErr)
	assert.Equal(t, "abcdef", string(data))
	assert.Len(t, tr.calls(), 1)
}

func TestSession_PanicInStreamIsContained(t *testing.T) {
	stream := &sliceStream{chunks: [][]byte{[]byte("partial")}, panics: true}
	src := &fakeSource{chunks: func(context.Context, string) (ChunkStream, error) { return stream, nil }}

	s := NewSession(testSpec(t), Account{User: "frank", RoomID: "r6"}, Dependencies{Source: src}, nil)
	err := s.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	data, readErr := os.ReadFile(s.Path())
	require.NoError(t, readErr)
	assert.Equal(t, "partial", string(data))
}

func TestSession_EmptyRecordingRemoved(t *testing.T) {
	src := &fakeSource{isLive: liveSequence(true, true, false)}
	tr := &fakeTranscoder{}
	spec := testSpec(t)

	s := NewSession(spec, Account{User: "gina", RoomID: "r7"}, Dependencies{Source: src, Transcoder: tr}, nil)
	require.NoError(t, s.Run(context.Background()))

	assert.Empty(t, dirEntries(t, spec.OutputDir))
	assert.Empty(t, tr.calls())
}

func TestSession_PostProcessFailuresAreNotFatal(t *testing.T) {
	src := &fakeSource{
		isLive: liveSequence(true, true, false),
		chunks: func(context.Context, string) (ChunkStream, error) {
			return &sliceStream{chunks: [][]byte{[]byte("media")}}, nil
		},
	}
	tr := &fakeTranscoder{err: errors.New("ffmpeg: invalid data")}
	up := &fakeUploader{}
	spec := testSpec(t)
	spec.Deliver = true

	s := NewSession(spec, Account{User: "hank", RoomID: "r8"}, Dependencies{Source: src, Transcoder: tr, Uploader: up}, nil)
	require.NoError(t, s.Run(context.Background()))

	_, err := os.Stat(s.Path())
	assert.NoError(t, err, "raw recording must survive a failed conversion")
	assert.Equal(t, []string{s.Path()}, up.sentPaths())
}

func TestSession_PublishesTransitions(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe(16)
	defer cancel()

	src := &fakeSource{isLive: liveSequence(false)}
	handle := NewSessionHandle("ivy")
	err := NewSession(testSpec(t), Account{User: "ivy", RoomID: "r9"}, Dependencies{Source: src, Events: hub}, handle).Run(context.Background())
	require.ErrorIs(t, err, ErrNotLive)

	first := <-events
	second := <-events
	assert.Equal(t, PhaseCheckingLive, first.Phase)
	assert.Equal(t, PhaseFailed, second.Phase)
	assert.Equal(t, handle.ID, second.SessionID)
	assert.Contains(t, second.Error, "not currently live")
}
