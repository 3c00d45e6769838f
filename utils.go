package detconv

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// filesByExtInDir returns all regular files with file extension ext found directly in directory
// dirPath, sorted by name. All files are returned if extension is empty.
func filesByExtInDir(dirPath, ext string) (files []string, err error) {
	// Open the directory.
	dirInfo, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %q: %w", dirPath, err)
	}
	if !dirInfo.IsDir() {
		return nil, fmt.Errorf("cannot read directory %q: not a directory", dirPath)
	}
	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access %q: %w", dirPath, err)
	}
	defer closeWithErrCheck(dir, &err)

	// Iterate over all files in dir.
	files = make([]string, 0, 100)
	var fileList []os.FileInfo
	for fileList, err = dir.Readdir(100); len(fileList) > 0; fileList, err = dir.Readdir(100) {
		for _, file := range fileList {
			name := file.Name()
			// Must be a regular file or a symlink and have the requested extension/suffix.
			if (!file.Mode().IsRegular() && (file.Mode()&os.ModeSymlink == 0)) ||
				!strings.HasSuffix(name, ext) {
				continue
			}
			files = append(files, filepath.Join(dirPath, name))
		}
	}
	if err != nil && err != io.EOF {
		slog.Warn("Failed to access some files", "dir", dirPath, "err", err)
	}

	sort.Strings(files)
	return files, nil
}

// splitPath splits the given file path into the dir name, the base name without extension and the
// extension (without the dot).
func splitPath(path string) (dir, baseNoExt, ext string, err error) {
	dir, file := filepath.Split(path)
	ext = filepath.Ext(file)
	if ext == "" {
		return "", "", "", fmt.Errorf("missing file extension in %q", path)
	}

	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	baseNoExt = file[0 : len(file)-len(ext)]
	ext = ext[1:]

	return dir, baseNoExt, ext, nil
}

// mapFileNamesToPaths maps the base names of the given file paths, with the file type extensions
// stripped off, to the full path.
func mapFileNamesToPaths(filePaths []string) map[string]string {
	mapping := make(map[string]string, len(filePaths))
	for _, path := range filePaths {
		_, baseNoExt, _, err := splitPath(path)
		if err != nil {
			slog.Warn("Skipping file", "err", err)
			continue
		}
		mapping[baseNoExt] = path
	}

	return mapping
}

// filePair is an annotation file and the image it describes.
type filePair struct {
	labelPath string
	imagePath string
}

// pairFilesByName matches the files in dir with extension labelExt (e.g. ".txt") by base name to
// files in the same directory with extension imageExt (e.g. ".jpg").
//
// Files without a counterpart are logged and skipped. Pairs are returned in label file order.
func pairFilesByName(dir, labelExt, imageExt string) ([]filePair, error) {
	labelFiles, err := filesByExtInDir(dir, labelExt)
	if err != nil {
		return nil, err
	}
	imageFiles, err := filesByExtInDir(dir, imageExt)
	if err != nil {
		return nil, err
	}
	images := mapFileNamesToPaths(imageFiles)

	pairs := make([]filePair, 0, len(labelFiles))
	for _, labelPath := range labelFiles {
		_, baseNoExt, _, err := splitPath(labelPath)
		if err != nil {
			slog.Warn("Skipping file", "path", labelPath, "err", err)
			continue
		}
		imagePath, found := images[baseNoExt]
		if !found {
			slog.Warn("No corresponding image file, skipping", "path", labelPath)
			continue
		}
		delete(images, baseNoExt)
		pairs = append(pairs, filePair{labelPath: labelPath, imagePath: imagePath})
	}
	for _, imagePath := range images {
		slog.Warn("No corresponding annotation file, skipping", "path", imagePath)
	}

	return pairs, nil
}

// readLines returns a slice of lines read from the file at path.
func readLines(path string) (lines []string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %q: %w", path, err)
	}
	defer closeWithErrCheck(file, &err)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %q as lines: %w", path, err)
	}

	return lines, nil
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// writeFileAtomic creates a temporary file next to path, passes it to write and renames it to path
// once write and the close succeed. On failure the temporary file is removed and path is left
// untouched.
func writeFileAtomic(path string, write func(w io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move the output to %q: %w", path, err)
	}
	return nil
}

// closeWithErrCheck calls c.Close(). If it returns an error, and (*e == nil), e is set to that
// error.
func closeWithErrCheck(c io.Closer, e *error) {
	err := c.Close()
	if err != nil && *e == nil {
		*e = err
	}
}
