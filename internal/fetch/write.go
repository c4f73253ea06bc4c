package fetch

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ppiankov/sito/internal/resource"
)

const blockSize = 32 * 1024

// ErrTooLarge is returned when a body exceeds the configured size limit
var ErrTooLarge = errors.New("response too large")

// writeBody streams body into the request destination, or into a new
// temporary file when none was given. Partial files are removed on failure.
// total is the announced size, -1 when unknown; limit of 0 means unlimited.
func writeBody(req resource.FetchRequest, body io.Reader, total, limit int64) (string, error) {
	var (
		f   *os.File
		err error
	)
	if req.Destination != "" {
		if err := os.MkdirAll(filepath.Dir(req.Destination), 0o755); err != nil {
			return "", fmt.Errorf("create destination dir: %w", err)
		}
		f, err = os.CreateTemp(filepath.Dir(req.Destination), "."+filepath.Base(req.Destination)+".*.part")
	} else {
		f, err = os.CreateTemp("", "sito-*"+tempSuffix(req.URI))
	}
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	tmp := f.Name()

	_, copyErr := copyWithProgress(f, body, total, limit, req.Progress)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}

	if req.Destination == "" {
		return tmp, nil
	}
	if err := os.Rename(tmp, req.Destination); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move into place: %w", err)
	}
	return req.Destination, nil
}

// copyWithProgress copies in fixed blocks, reporting after the initial call
// and after every block
func copyWithProgress(dst io.Writer, src io.Reader, total, limit int64, progress resource.ProgressFunc) (int64, error) {
	report := func(n int64) {
		if progress != nil {
			progress(n, blockSize, total)
		}
	}

	report(0)

	buf := make([]byte, blockSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			written += int64(n)
			if limit > 0 && written > limit {
				return written, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write: %w", err)
			}
			report(written)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("read body: %w", readErr)
		}
	}
}

// parseContentType splits a Content-Type value into the media type and the
// declared charsets
func parseContentType(value string) (string, []string) {
	if value == "" {
		return "", nil
	}

	mediaType, params, err := mime.ParseMediaType(value)
	if err != nil {
		mediaType, _, _ = strings.Cut(value, ";")
		return strings.ToLower(strings.TrimSpace(mediaType)), nil
	}

	if charset, ok := params["charset"]; ok && charset != "" {
		return mediaType, []string{strings.ToLower(charset)}
	}
	return mediaType, nil
}

// tempSuffix keeps the extension of the remote name on temporary files
func tempSuffix(uri string) string {
	ext := path.Ext(resource.SplitURI(uri).Path)
	if len(ext) > 16 || strings.ContainsAny(ext, `/\*`) {
		return ""
	}
	return ext
}
