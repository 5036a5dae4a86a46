package ingest

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrBadArchive marks a payload that could not be opened as a zip archive.
var ErrBadArchive = errors.New("not a valid zip archive")

// ExtractArchive unpacks the archive at zipPath into destDir and returns the
// extracted files named like Streaming_History*.json, sorted by path so the
// processing order is stable. Entries that would escape destDir are rejected.
func ExtractArchive(zipPath, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination dir: %w", err)
	}

	for _, file := range reader.File {
		if err := extractEntry(file, destDir); err != nil {
			return nil, err
		}
	}

	var histories []string
	err = filepath.WalkDir(destDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "Streaming_History") && strings.HasSuffix(name, ".json") {
			histories = append(histories, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan extracted files: %w", err)
	}

	sort.Strings(histories)
	return histories, nil
}

func extractEntry(file *zip.File, destDir string) error {
	target := filepath.Join(destDir, file.Name)

	// Keep zip entries inside the destination directory.
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal archive path: %s", file.Name)
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", file.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}

	return nil
}
