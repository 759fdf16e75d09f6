package recorder

import "context"

// LiveSource is the platform API as seen by the recording engine.
// Implementations wrap transport failures with ErrConnection and report an
// account without a current room as ErrNotLive.
type LiveSource interface {
	// ResolveRoom returns the current room id of a user.
	ResolveRoom(ctx context.Context, user string) (string, error)
	// ResolveUser returns the owner of a room.
	ResolveUser(ctx context.Context, roomID string) (string, error)
	// IsLive reports whether the room is broadcasting.
	IsLive(ctx context.Context, roomID string) (bool, error)
	// LiveURL returns a pull URL for the room's media.
	LiveURL(ctx context.Context, roomID string) (string, error)
	// Chunks opens the media at url as a chunk sequence.
	Chunks(ctx context.Context, url string) (ChunkStream, error)
	// CountryBlocked reports whether the platform blocks this network.
	CountryBlocked(ctx context.Context) (bool, error)
}

// ChunkStream is a finite, ordered, non-restartable sequence of media bytes.
// Next returns io.EOF once the stream has ended. A returned chunk is owned
// by the caller.
type ChunkStream interface {
	Next() ([]byte, error)
	Close() error
}

// Transcoder remuxes a finished raw recording into a portable container.
type Transcoder interface {
	Convert(ctx context.Context, inputPath string) (outputPath string, err error)
}

// Uploader forwards finished recordings and notices to a delivery sink.
type Uploader interface {
	Send(ctx context.Context, path string) error
	Notify(ctx context.Context, message string) error
}
