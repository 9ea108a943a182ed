package engine

import "context"

// Phases reported by the extraction engine while a fetch is running.
const (
	PhaseDownloading = "downloading"
	PhaseFinished    = "finished"
)

// Format is a single encoding descriptor as reported by the
// extraction engine for one source.
type Format struct {
	FormatID   string  `json:"format_id"`
	Vcodec     string  `json:"vcodec"`
	Acodec     string  `json:"acodec"`
	Resolution string  `json:"resolution"`
	Height     int     `json:"height"`
	Ext        string  `json:"ext"`
	Filesize   int64   `json:"filesize"`
	FormatNote string  `json:"format_note"`
	Fps        float64 `json:"fps"`
}

// HasVideo reports whether the descriptor carries a video stream.
func (f *Format) HasVideo() bool { return f.Vcodec != "" && f.Vcodec != "none" }

// HasAudio reports whether the descriptor carries an audio stream.
func (f *Format) HasAudio() bool { return f.Acodec != "" && f.Acodec != "none" }

type Metadata struct {
	Title   string   `json:"title"`
	Formats []Format `json:"formats"`
}

// Progress is one progress callback payload. TotalBytes is the exact
// total when the engine knows it, TotalBytesEstimate its guess
// otherwise; either may be zero.
type Progress struct {
	Phase              string
	DownloadedBytes    int64
	TotalBytes         int64
	TotalBytesEstimate int64
}

type ProgressFunc func(Progress)

// DownloadRequest describes one fetch: the source URL, the selection
// expression for the desired streams and the directory the artifact
// must land in.
type DownloadRequest struct {
	URL       string
	Format    string
	OutputDir string
}

// Engine is the boundary to the video extraction engine. Metadata
// queries never write to disk; Download blocks until the fetch and
// any post-processing finish and returns the path the engine
// predicted for the artifact (the real file may carry a different
// extension after a remux).
type Engine interface {
	Metadata(ctx context.Context, url string) (*Metadata, error)
	Download(ctx context.Context, req DownloadRequest, hook ProgressFunc) (string, error)
}
