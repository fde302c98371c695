package convert

// AudioExtension is the container produced for every job.
const AudioExtension = ".mp3"

// Job is one validated request to fetch, normalize and store a media item.
// The UUID namespaces every local artifact and the upload key.
type Job struct {
	URL    string `json:"url"`
	Folder string `json:"folder"`
	UUID   string `json:"uuid"`
}

// RawArtifact is the filename of the unprocessed download.
func (j Job) RawArtifact() string {
	return j.UUID
}

// AudioArtifact is the filename of the encoded audio.
func (j Job) AudioArtifact() string {
	return j.UUID + AudioExtension
}

// UploadKey returns the object key {folder}/{uuid}.mp3.
func (j Job) UploadKey() string {
	return ObjectKey(j.Folder, j.AudioArtifact())
}

// ObjectKey returns {folder}/{filename}. The folder is used verbatim, so a
// trailing slash yields an empty path segment.
func ObjectKey(folder, filename string) string {
	return folder + "/" + filename
}

// Result summarizes one orchestrated run. It is only ever logged or counted;
// ingress adapters do not report it back to callers.
type Result struct {
	Job        Job
	Acquired   bool
	Uploaded   bool
	PublicURL  string
	AcquireErr error
	UploadErr  error
}

// Outcome collapses a Result into a metric label.
func (r Result) Outcome() string {
	switch {
	case r.Uploaded:
		return "uploaded"
	case r.Acquired:
		return "upload_failed"
	default:
		return "acquire_failed"
	}
}
