package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"

	"github.com/nhuphucnguyen/TubeScribe/server/config"
)

const outputTemplate = "%(title)s.%(ext)s"

const downloadTemplate = `download:
{
	"phase":"%(progress.status)s",
	"downloaded_bytes":%(progress.downloaded_bytes|0)s,
	"total_bytes":%(progress.total_bytes|0)s,
	"total_bytes_estimate":%(progress.total_bytes_estimate|0)s,
	"filename":"%(info.filename)s"
}`

// filename not returning the correct extension after postprocess
const postprocessTemplate = `postprocess:
{
	"filepath":"%(info.filepath)s"
}`

var templateReplacer = strings.NewReplacer("\n", "", "\t", "", " ", "")

// CLI drives the yt-dlp binary configured at paths.downloader_path.
type CLI struct{}

func NewCLI() Engine { return &CLI{} }

func (c *CLI) Metadata(ctx context.Context, url string) (*Metadata, error) {
	cmd := exec.CommandContext(
		ctx,
		config.Instance().Paths.DownloaderPath,
		url, "-J", "--no-playlist",
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var bufferedStderr bytes.Buffer

	go func() {
		io.Copy(&bufferedStderr, stderr)
	}()

	slog.Info("retrieving metadata", slog.String("url", url))

	var meta Metadata
	if err := json.NewDecoder(stdout).Decode(&meta); err != nil {
		cmd.Wait()
		return nil, errors.Join(errors.New("failed to decode metadata"), err)
	}

	if err := cmd.Wait(); err != nil {
		return nil, errors.New(bufferedStderr.String())
	}

	return &meta, nil
}

func (c *CLI) Download(ctx context.Context, req DownloadRequest, hook ProgressFunc) (string, error) {
	params := []string{
		strings.Split(req.URL, "?list")[0], // no playlist
		"--newline",
		"--no-colors",
		"--no-playlist",
		"--no-exec",
		"-f", req.Format,
		"--merge-output-format", "mp4",
		"--progress-template", templateReplacer.Replace(downloadTemplate),
		"--progress-template", templateReplacer.Replace(postprocessTemplate),
		"-o", fmt.Sprintf("%s/%s", req.OutputDir, outputTemplate),
	}

	slog.Info("requesting download",
		slog.String("url", req.URL),
		slog.String("format", req.Format),
	)

	cmd := exec.Command(config.Instance().Paths.DownloaderPath, params...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", err
	}

	if err := cmd.Start(); err != nil {
		return "", errors.Join(errors.New("failed to start downloader process"), err)
	}

	var bufferedStderr bytes.Buffer

	go func() {
		io.Copy(&bufferedStderr, stderr)
	}()

	var resolved resolvedOutput

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		consumeLogEntry(scanner.Bytes(), hook, &resolved)
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(bufferedStderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("download failed: %s", detail)
	}

	return resolved.path(), nil
}

// resolvedOutput tracks the engine's own idea of where the artifact
// lives: the filename from progress lines, overridden by the
// postprocess filepath when a merge/remux ran.
type resolvedOutput struct {
	filename string
	filepath string
}

func (r *resolvedOutput) path() string {
	if r.filepath != "" {
		return r.filepath
	}
	return r.filename
}

type progressLine struct {
	Phase              string `json:"phase"`
	DownloadedBytes    int64  `json:"downloaded_bytes"`
	TotalBytes         int64  `json:"total_bytes"`
	TotalBytesEstimate int64  `json:"total_bytes_estimate"`
	Filename           string `json:"filename"`
}

type postprocessLine struct {
	FilePath string `json:"filepath"`
}

func consumeLogEntry(entry []byte, hook ProgressFunc, resolved *resolvedOutput) {
	var progress progressLine
	if err := json.Unmarshal(entry, &progress); err == nil && progress.Phase != "" {
		if progress.Filename != "" {
			resolved.filename = progress.Filename
		}

		if hook != nil {
			hook(Progress{
				Phase:              progress.Phase,
				DownloadedBytes:    progress.DownloadedBytes,
				TotalBytes:         progress.TotalBytes,
				TotalBytesEstimate: progress.TotalBytesEstimate,
			})
		}
		return
	}

	var postprocess postprocessLine
	if err := json.Unmarshal(entry, &postprocess); err == nil && postprocess.FilePath != "" {
		resolved.filepath = postprocess.FilePath
	}
}
