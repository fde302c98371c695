package convert

import (
	"context"
	"io"
)

// Fetcher downloads a remote resource into a local file.
type Fetcher interface {
	Download(ctx context.Context, rawURL string, dest string) (int64, error)
}

// Prober reports whether a local media file carries an audio stream.
type Prober interface {
	HasAudio(ctx context.Context, path string) (bool, error)
}

// Transcoder re-encodes a media file into the fixed audio format.
type Transcoder interface {
	Transcode(ctx context.Context, input string, output string) error
}

// Extractor pulls best-available audio from a streaming platform and writes
// {dir}/{stem}.mp3.
type Extractor interface {
	Extract(ctx context.Context, request ExtractRequest) error
}

// ExtractRequest describes a single extractor invocation.
type ExtractRequest struct {
	URL  string
	Dir  string
	Stem string
}

// BlobStore writes artifacts to object storage and returns a storage URI.
type BlobStore interface {
	PutObject(ctx context.Context, key string, contentType string, data io.Reader) (string, error)
}

// Acquirer produces {uuid}.mp3 for a job or leaves no such file behind.
type Acquirer interface {
	Acquire(ctx context.Context, job Job) error
}

// Uploader pushes a local file under {folder}/{filename} and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, folder string, path string) (string, error)
}

// Processor runs one job end to end. It never fails outward.
type Processor interface {
	Process(ctx context.Context, job Job) Result
}

// Submitter hands a job to background execution without waiting for it.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}
