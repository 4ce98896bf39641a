// Package snapshot captures the state of the customer's git worktree so an
// engineer can reproduce the problem: a quick inspection summary plus a
// tar.gz of the tracked files, uploaded to the task.
package snapshot

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// maxSnapshotSize caps the compressed archive at 50MB.
const maxSnapshotSize = 50 << 20

// Info summarizes the repository state at capture time.
type Info struct {
	Branch string
	Commit string
	Dirty  bool
}

// Inspect reports the branch, commit, and dirtiness of the worktree at dir.
func Inspect(dir string) (*Info, error) {
	branch, err := gitOutput(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	commit, err := gitOutput(dir, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	status, err := gitOutput(dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return &Info{
		Branch: branch,
		Commit: commit,
		Dirty:  status != "",
	}, nil
}

// Build writes a tar.gz of the tracked files in dir to outPath. Untracked
// and ignored files stay out: the archive mirrors what git knows about.
func Build(dir, outPath string) error {
	listing, err := gitOutput(dir, "ls-files")
	if err != nil {
		return fmt.Errorf("list tracked files: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, rel := range strings.Split(listing, "\n") {
		if rel == "" {
			continue
		}
		if err := addFile(tw, dir, rel); err != nil {
			tw.Close()
			gz.Close()
			return fmt.Errorf("archive %s: %w", rel, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	info, err := out.Stat()
	if err != nil {
		return err
	}
	if info.Size() > maxSnapshotSize {
		os.Remove(outPath)
		return fmt.Errorf("snapshot is %dMB, exceeding the 50MB cap", info.Size()>>20)
	}
	return nil
}

// TokenSource mirrors directory.TokenSource.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Upload posts the archive to the task as a multipart snapshot.
func Upload(ctx context.Context, apiURL, taskID, archivePath string, tokens TokenSource) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("snapshot", filepath.Base(archivePath))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/tasks/%s/snapshot", apiURL, taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	token, err := tokens.GetValidToken(ctx)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("snapshot upload returned HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

func addFile(tw *tar.Writer, dir, rel string) error {
	full := filepath.Join(dir, rel)
	info, err := os.Lstat(full)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil // symlinks and oddities are skipped
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	f, err := os.Open(full)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
