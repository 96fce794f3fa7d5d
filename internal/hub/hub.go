// Package hub fetches model artifacts from a Hugging Face compatible hub.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"chatd/internal/common/fsutil"
)

const (
	// DefaultBaseURL is the public Hugging Face hub.
	DefaultBaseURL = "https://huggingface.co"
	markerSuffix   = ".chatd-downloaded"
	partSuffix     = ".part"
)

// ProgressFunc receives the byte count written so far and the expected total
// (zero when the server does not announce a length).
type ProgressFunc func(done, total int64)

// Request names one file inside a hub repository.
type Request struct {
	Repo     string
	Revision string
	File     string
	Token    string
}

// Downloader fetches files into a local directory laid out as <dir>/<repo>/<file>.
type Downloader struct {
	BaseURL string
	Client  *http.Client
	Logger  zerolog.Logger
}

// Path returns where req is stored below dir. Repo and file names that would
// resolve outside dir are rejected.
func Path(dir string, req Request) (string, error) {
	root := filepath.Clean(dir)
	p := filepath.Join(root, filepath.FromSlash(req.Repo), filepath.FromSlash(req.File))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid hub request: %s/%s escapes %s", req.Repo, req.File, dir)
	}
	return p, nil
}

// Fetch downloads req into dir unless an up-to-date copy is already present and
// returns the local path. The file is written to a temporary name and renamed
// on success; a marker next to it records repo and revision so a revision
// change triggers a new download. Nothing is retried.
func (d *Downloader) Fetch(ctx context.Context, req Request, dir string, progress ProgressFunc) (string, error) {
	repo := strings.Trim(strings.TrimSpace(req.Repo), "/")
	file := strings.TrimLeft(strings.TrimSpace(req.File), "/")
	if repo == "" || file == "" {
		return "", fmt.Errorf("invalid hub request: repo=%q file=%q", req.Repo, req.File)
	}
	req.Repo, req.File = repo, file
	dst, err := Path(dir, req)
	if err != nil {
		return "", err
	}
	marker := dst + markerSuffix
	want := markerContent(req)

	if b, err := os.ReadFile(marker); err == nil && string(b) == want {
		if fsutil.PathExists(dst) {
			d.Logger.Debug().Str("repo", repo).Str("file", file).Msg("hub file up to date, skipping download")
			return dst, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	u, err := d.fileURL(req)
	if err != nil {
		return "", err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	if req.Token != "" {
		hreq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	cli := d.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	d.Logger.Info().Str("repo", repo).Str("file", file).Str("url", u).Msg("downloading model file")
	resp, err := cli.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", file, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("download %s: hub returned %s: %s", file, resp.Status, strings.TrimSpace(string(b)))
	}

	tmp := dst + partSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	w := &countingWriter{w: f, total: total, progress: progress}
	if progress != nil {
		progress(0, total)
	}
	_, copyErr := io.Copy(w, resp.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("write %s: %w", file, err)
	}
	if total > 0 && w.done != total {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("download %s: short read: %d of %d bytes", file, w.done, total)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", tmp, err)
	}
	if err := os.WriteFile(marker, []byte(want), 0o644); err != nil {
		d.Logger.Warn().Err(err).Str("path", marker).Msg("failed to write download marker")
	}
	d.Logger.Info().Str("repo", repo).Str("file", file).Int64("bytes", w.done).Msg("model file downloaded")
	return dst, nil
}

func (d *Downloader) fileURL(req Request) (string, error) {
	base := strings.TrimRight(d.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	rev := req.Revision
	if rev == "" {
		rev = "main"
	}
	u, err := url.JoinPath(base, req.Repo, "resolve", rev, req.File)
	if err != nil {
		return "", fmt.Errorf("build hub url: %w", err)
	}
	return u, nil
}

func markerContent(req Request) string {
	rev := req.Revision
	if rev == "" {
		rev = "main"
	}
	return fmt.Sprintf("repo: %s\nrevision: %s\nfile: %s\n", req.Repo, rev, req.File)
}

type countingWriter struct {
	w        io.Writer
	done     int64
	total    int64
	progress ProgressFunc
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.done += int64(n)
	if c.progress != nil && n > 0 {
		c.progress(c.done, c.total)
	}
	return n, err
}
