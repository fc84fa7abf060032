package downloader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/corvidae/pixback/internal/pixivapi"
)

// artifact is one binary file belonging to an illust: its upstream source
// URL and the final on-disk file name it resolves to under
// img/<illust_id>/ (§6.1).
type artifact struct {
	URL      string
	FileName string
}

// resolveArtifacts builds the artifact list for an illust (§4.5):
// a single named file for illust/manga with one page, `.p<k>` suffixes for
// multi-page manga, and a single `.zip` for ugoira (populated separately
// once the ugoira metadata endpoint has been consulted).
func resolveArtifacts(illust pixivapi.Illust) []artifact {
	if illust.Type == pixivapi.WorkTypeUgoira {
		// Ugoira's artifact is resolved by the caller once it has the
		// zip URL from the metadata endpoint; see Downloader.downloadOne.
		return nil
	}

	if len(illust.MetaPages) <= 1 {
		url := illust.MetaSingle.OriginalImageURL
		if url == "" && len(illust.MetaPages) == 1 {
			url = illust.MetaPages[0].ImageURLs.Original
		}
		if url == "" {
			return nil
		}
		ext := extOf(url)
		return []artifact{{URL: url, FileName: fmt.Sprintf("%d%s", illust.ID, ext)}}
	}

	arts := make([]artifact, 0, len(illust.MetaPages))
	for i, page := range illust.MetaPages {
		url := page.ImageURLs.Original
		if url == "" {
			continue
		}
		ext := extOf(url)
		arts = append(arts, artifact{URL: url, FileName: fmt.Sprintf("%d.p%d%s", illust.ID, i, ext)})
	}
	return arts
}

func extOf(url string) string {
	ext := filepath.Ext(url)
	if idx := strings.IndexAny(ext, "?#"); idx >= 0 {
		ext = ext[:idx]
	}
	if ext == "" {
		ext = ".jpg"
	}
	return ext
}

// artifactDir returns img/<illust_id> relative to output_dir.
func artifactDir(illustID int64) string {
	return filepath.Join("img", fmt.Sprintf("%d", illustID))
}
