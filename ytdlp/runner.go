// Package ytdlp adapts the external yt-dlp tool to the job queue: metadata
// resolution and the actual fetch, both with enforced timeouts.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ytqueue/config"
	"ytqueue/job"

	"github.com/google/shlex"
	"github.com/shirou/gopsutil/v3/disk"
)

// FetchError is a terminal download failure. Detail is surfaced verbatim to
// end users, so it carries the tool's diagnostic text rather than a code.
type FetchError struct {
	Detail  string
	Timeout bool
}

func (e *FetchError) Error() string {
	return e.Detail
}

// knownExtensions are the containers yt-dlp may choose for its output.
var knownExtensions = []string{"mp4", "webm", "mkv", "avi"}

type Runner struct {
	cfg        *config.Config
	extraArgs  []string
	cookieArgs []string
}

func NewRunner(cfg *config.Config) (*Runner, error) {
	if _, err := exec.LookPath(cfg.YtdlpBin); err != nil {
		return nil, fmt.Errorf("yt-dlp binary not found or not in PATH: %s", cfg.YtdlpBin)
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create download directory: %w", err)
	}

	var extra []string
	if cfg.ExtraArgs != "" {
		var err error
		extra, err = shlex.Split(cfg.ExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("invalid YTDLP_EXTRA_ARGS: %w", err)
		}
	}

	r := &Runner{cfg: cfg, extraArgs: extra}
	if SetupCookies(cfg) {
		r.cookieArgs = []string{"--cookies", cfg.CookiesFile}
	}
	return r, nil
}

// commonArgs are passed to every yt-dlp invocation.
func (r *Runner) commonArgs() []string {
	args := []string{
		"--no-warnings",
		"--extractor-args", "youtube:player_client=android",
		"--no-check-certificates",
	}
	args = append(args, r.cookieArgs...)
	return append(args, r.extraArgs...)
}

// Resolve fetches title, duration label, and thumbnail for url without
// downloading. Any failure only means the info is unavailable.
func (r *Runner) Resolve(ctx context.Context, url string) (*job.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.MetadataTimeout)
	defer cancel()

	args := append([]string{"--dump-json", "--no-download"}, r.commonArgs()...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, r.cfg.YtdlpBin, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp info failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	var info struct {
		Title          string      `json:"title"`
		DurationString string      `json:"duration_string"`
		Duration       json.Number `json:"duration"`
		Thumbnail      string      `json:"thumbnail"`
	}
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("yt-dlp info returned invalid JSON: %w", err)
	}

	title := info.Title
	if title == "" {
		title = "Unknown"
	}
	// Duration stays an opaque display label; numeric seconds are carried
	// as their decimal string when no formatted label exists.
	duration := info.DurationString
	if duration == "" {
		duration = info.Duration.String()
	}

	return &job.Metadata{
		Title:     title,
		Duration:  duration,
		Thumbnail: info.Thumbnail,
	}, nil
}

// Fetch downloads the video for job id into the download directory. The
// output path is derived from id so successive fetches never collide, with
// the container extension left to the tool. Transient fragment retries are
// delegated to yt-dlp itself.
func (r *Runner) Fetch(ctx context.Context, id, url string) (*job.Artifact, error) {
	if err := r.checkDisk(); err != nil {
		return nil, &FetchError{Detail: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	args := []string{
		"-f", "best[ext=mp4]/bestvideo[ext=mp4]+bestaudio[ext=m4a]/best",
		"-o", filepath.Join(r.cfg.DownloadDir, id+".%(ext)s"),
		"--no-playlist",
		"--retries", "3",
		"--fragment-retries", "3",
	}
	args = append(args, r.commonArgs()...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, r.cfg.YtdlpBin, args...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, &FetchError{
			Timeout: true,
			Detail:  fmt.Sprintf("download timed out after %s", r.cfg.FetchTimeout),
		}
	}
	if err != nil {
		detail := strings.TrimSpace(outputBuf.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, &FetchError{Detail: "yt-dlp error: " + detail}
	}

	path, err := FindArtifact(r.cfg.DownloadDir, id)
	if err != nil {
		return nil, &FetchError{Detail: err.Error()}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FetchError{Detail: "downloaded file not found"}
	}

	return &job.Artifact{
		Path:      path,
		SizeLabel: FormatFileSize(info.Size()),
	}, nil
}

// FindArtifact locates the file yt-dlp produced for id, probing the
// recognized container extensions.
func FindArtifact(dir, id string) (string, error) {
	for _, ext := range knownExtensions {
		path := filepath.Join(dir, id+"."+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.New("downloaded file not found")
}

// checkDisk refuses to start a fetch when free space in the download
// directory is below the configured threshold.
func (r *Runner) checkDisk() error {
	d, err := disk.Usage(r.cfg.DownloadDir)
	if err != nil {
		log.Printf("Warning: could not get disk usage for %s: %v", r.cfg.DownloadDir, err)
		return nil
	}
	if d.Free < uint64(r.cfg.ThrottleFreeDisk) {
		return fmt.Errorf("not enough free disk space. Available: %d, Required: %d", d.Free, r.cfg.ThrottleFreeDisk)
	}
	return nil
}
