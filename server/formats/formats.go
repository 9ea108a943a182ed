// Package formats turns raw encoding descriptors into the list of
// quality options offered to clients and maps a chosen option back to
// a selection expression the extraction engine understands.
package formats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nhuphucnguyen/TubeScribe/server/internal/engine"
)

// Option is one user-selectable quality choice.
type Option struct {
	FormatID   string `json:"format_id"`
	Resolution string `json:"resolution,omitempty"`
	Ext        string `json:"ext"`
	Filesize   int64  `json:"filesize"`
	FormatNote string `json:"format_note"`
}

// Tokens for the smart options. The catalog and the resolver must
// agree on this vocabulary: an offered token that does not resolve
// silently degrades quality.
const (
	TokenMaxQuality = "bestvideo+bestaudio"
	Token4K         = "4K"
	Token1080p      = "1080p"
	Token720p       = "720p"
	TokenMP4        = "mp4"
	TokenWebM       = "webm"
	TokenBalanced   = "best"
)

// SmartOptions returns the fixed, hand-authored options prepended to
// every catalog regardless of what the source offers.
func SmartOptions() []Option {
	return []Option{
		{
			FormatID:   TokenMaxQuality,
			Resolution: "Maximum Quality",
			Ext:        "mp4",
			FormatNote: "Best video & audio quality available (largest file)",
		},
		{
			FormatID:   Token4K,
			Resolution: "4K (2160p)",
			Ext:        "mp4",
			FormatNote: "4K quality (if available)",
		},
		{
			FormatID:   Token1080p,
			Resolution: "Full HD (1080p)",
			Ext:        "mp4",
			FormatNote: "Full HD quality",
		},
		{
			FormatID:   Token720p,
			Resolution: "HD (720p)",
			Ext:        "mp4",
			FormatNote: "HD quality (smaller file)",
		},
		{
			FormatID:   TokenMP4,
			Resolution: "Best MP4",
			Ext:        "mp4",
			FormatNote: "Best quality in MP4 format",
		},
		{
			FormatID:   TokenWebM,
			Resolution: "Best WebM",
			Ext:        "webm",
			FormatNote: "Best quality in WebM format",
		},
		{
			FormatID:   TokenBalanced,
			Resolution: "Balanced Quality",
			Ext:        "mp4",
			FormatNote: "Good balance of quality and file size",
		},
	}
}

// BuildCatalog produces the ordered option list for one source:
// smart options, then combined audio+video encodings deduplicated by
// (resolution, ext) and sorted by descending height, then one
// audio-only encoding per container extension. First occurrence wins
// on every deduplication; ties keep input order.
func BuildCatalog(fmts []engine.Format) []Option {
	type combined struct {
		opt    Option
		height int
	}

	var (
		video     []combined
		seenVideo = map[string]bool{}
	)

	for _, f := range fmts {
		if !f.HasVideo() || !f.HasAudio() {
			continue
		}
		if f.Height <= 0 || strings.Contains(f.Resolution, "audio only") {
			continue
		}

		key := fmt.Sprintf("%s_%s", f.Resolution, f.Ext)
		if seenVideo[key] {
			continue
		}
		seenVideo[key] = true

		video = append(video, combined{
			opt: Option{
				FormatID:   f.FormatID,
				Resolution: f.Resolution,
				Ext:        f.Ext,
				Filesize:   f.Filesize,
				FormatNote: f.FormatNote,
			},
			height: f.Height,
		})
	}

	sort.SliceStable(video, func(i, j int) bool {
		return video[i].height > video[j].height
	})

	var (
		audio     []Option
		seenAudio = map[string]bool{}
	)

	for _, f := range fmts {
		if f.HasVideo() || !f.HasAudio() {
			continue
		}
		if seenAudio[f.Ext] {
			continue
		}
		seenAudio[f.Ext] = true

		audio = append(audio, Option{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Filesize:   f.Filesize,
			FormatNote: fmt.Sprintf("Audio %s", f.FormatNote),
		})
	}

	catalog := SmartOptions()
	for _, v := range video {
		catalog = append(catalog, v.opt)
	}
	catalog = append(catalog, audio...)

	return catalog
}

// selectors is the other half of the smart-option vocabulary: the
// concrete selection expression each token stands for.
var selectors = map[string]string{
	TokenMaxQuality: "bestvideo+bestaudio/best",
	TokenBalanced:   "best/bestvideo+bestaudio",
	Token4K:         "bestvideo[height>=2160]+bestaudio/best[height>=2160]",
	Token1080p:      "bestvideo[height>=1080][height<2160]+bestaudio/best[height>=1080][height<2160]",
	Token720p:       "bestvideo[height>=720][height<1080]+bestaudio/best[height>=720][height<1080]",
	TokenMP4:        "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]",
	TokenWebM:       "bestvideo[ext=webm]+bestaudio[ext=webm]/best[ext=webm]",
}

// Resolve maps a chosen format id to the selection expression handed
// to the extraction engine. Anything outside the smart vocabulary is
// a literal encoding id and passes through untouched.
func Resolve(formatID string) string {
	if expr, ok := selectors[formatID]; ok {
		return expr
	}
	return formatID
}
