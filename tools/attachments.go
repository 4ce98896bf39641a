package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"lifeline/directory"
)

const (
	maxAttachments      = 5
	maxBinaryAttachment = 10 << 20 // 10MB
	maxTextAttachment   = 1 << 20  // 1MB
)

// binaryExtensions are the small binary types engineers commonly need:
// screenshots, recordings, archives of logs.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".pdf": true, ".zip": true, ".gz": true, ".mp4": true, ".mov": true,
}

// validateAttachments checks count and per-file size caps before anything
// touches the network. A single failure rejects the whole set.
func validateAttachments(paths []string) error {
	if len(paths) > maxAttachments {
		return &ValidationError{
			Field:  "attachments",
			Reason: fmt.Sprintf("at most %d attachments allowed, got %d", maxAttachments, len(paths)),
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return &ValidationError{Field: "attachments", Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
		}
		if info.IsDir() {
			return &ValidationError{Field: "attachments", Reason: fmt.Sprintf("%s is a directory", path)}
		}

		ext := strings.ToLower(filepath.Ext(path))
		if binaryExtensions[ext] {
			if info.Size() > maxBinaryAttachment {
				return &ValidationError{
					Field:  "attachments",
					Reason: fmt.Sprintf("%s is %dMB, binary attachments are capped at 10MB", path, info.Size()>>20),
				}
			}
		} else if info.Size() > maxTextAttachment {
			return &ValidationError{
				Field:  "attachments",
				Reason: fmt.Sprintf("%s exceeds the 1MB cap for text attachments", path),
			}
		}
	}
	return nil
}

// uploadAttachments sends all files, aborting on the first failure so the
// task never ends up with a partial attachment set the engineer would
// mistake for complete context.
func uploadAttachments(ctx context.Context, dir *directory.Client, taskID string, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read attachment %s: %w", path, err)
			}
			return dir.UploadAttachment(ctx, taskID, filepath.Base(path), data)
		})
	}
	return g.Wait()
}
