package downloads

import (
	"fmt"
	"path/filepath"

	"github.com/otakuhaven/otakuback/internal/cache"
)

// filePath builds the on-disk path for a video download under dir,
// sanitizing both the media id and filename the same way internal/cache
// sanitizes an asset id (spec.md §6: "Downloads live under <data>/downloads/").
func filePath(dir, mediaID, filename string) string {
	return filepath.Join(dir, cache.SanitizeFilename(mediaID), cache.SanitizeFilename(filename))
}

// chapterFolder builds the folder for a manga chapter's images, per
// spec.md §6: "<data>/downloads/Manga/<safe_title>_Ch<number>/".
func chapterFolder(dir, title string, chapterNumber float64) string {
	safe := cache.SanitizeFilename(title)
	return filepath.Join(dir, "Manga", fmt.Sprintf("%s_Ch%s", safe, formatChapterNumber(chapterNumber)))
}

func formatChapterNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%.1f", n)
}
