package stage

import (
	"fmt"
	"os"
	"strings"

	"platewatch/internal/services"
	"platewatch/internal/store"
)

// RequireSource checks that the video's trace exists and is a regular file.
// On failure it returns a services.ErrInput suitable for stage Prepare methods.
func RequireSource(video *store.Video) (string, error) {
	if video == nil {
		return "", services.Wrap(services.ErrValidation, "stage", "require source", "video is nil", nil)
	}
	path := strings.TrimSpace(video.SourcePath)
	if path == "" {
		return "", services.Wrap(services.ErrInput, "stage", "require source",
			fmt.Sprintf("video %d has no source path", video.ID), nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(services.ErrInput, "stage", "require source",
			"Source trace is unreadable; re-add the video with a valid path", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrInput, "stage", "require source",
			fmt.Sprintf("%s is a directory", path), nil)
	}
	return path, nil
}
