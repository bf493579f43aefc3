package mediaserver

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// byteRange is a parsed, closed [start, end] byte range.
type byteRange struct {
	start, end int64 // end is -1 for an open-ended "bytes=A-" range
}

var rangeRe = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// parseRange accepts "bytes=A-" and "bytes=A-B" (closed), per spec.md
// §4.4. Returns ok=false if the header is absent or malformed, in which
// case the caller serves the full body.
func parseRange(header string) (byteRange, bool) {
	m := rangeRe.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return byteRange{}, false
	}
	start, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return byteRange{}, false
	}
	if m[2] == "" {
		return byteRange{start: start, end: -1}, true
	}
	end, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return byteRange{}, false
	}
	return byteRange{start: start, end: end}, true
}

// serveFileWithRange implements spec.md §4.4's Range handling for /files
// and /absolute: 206 with Content-Range when a valid range is requested,
// 416 when the range is invalid for the file's size, otherwise a plain 200
// with Content-Length and Accept-Ranges.
func serveFileWithRange(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	size := fi.Size()
	contentType := contentTypeFor(path)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	rh := r.Header.Get("Range")
	if rh == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, f)
		}
		return
	}

	rng, ok := parseRange(rh)
	if !ok {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, f)
		}
		return
	}

	end := rng.end
	if end == -1 {
		end = size - 1
	}
	if rng.start > end || end >= size {
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	length := end - rng.start + 1
	w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(rng.start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(size, 10))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
		return
	}
	io.CopyN(w, f, length)
}

func contentTypeFor(path string) string {
	ext := filepath.Ext(path)
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	switch strings.ToLower(ext) {
	case ".mkv":
		return "video/x-matroska"
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}

// handleFiles serves GET /files/<path> under DownloadsRoot, rejecting any
// resolved path that escapes the root (spec.md §4.4, §7 policy errors).
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, "/files/")
	full, err := safeJoin(s.DownloadsRoot, rel)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	serveFileWithRange(w, r, full)
}

// handleAbsolute serves GET /absolute?path=... for a user-configured
// custom download location, outside DownloadsRoot. Non-existent paths are
// rejected per spec.md §4.4.
func (s *Server) handleAbsolute(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "missing path", http.StatusBadRequest)
		return
	}
	if !filepath.IsAbs(path) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	serveFileWithRange(w, r, path)
}

// safeJoin joins root and rel, rejecting any result that escapes root
// (e.g. via "../" segments).
func safeJoin(root, rel string) (string, error) {
	full := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return full, nil
}
