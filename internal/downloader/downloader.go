// Package downloader implements the Downloader (C6): given
// a claimed queue item, it resolves artifact URLs, streams each to a temp
// file and renames it into place, writes the per-work metadata document,
// and records the outcome in the metadata store.
package downloader

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/corvidae/pixback/internal/auth"
	"github.com/corvidae/pixback/internal/common/errors"
	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/common/paths"
	"github.com/corvidae/pixback/internal/pixivapi"
	"github.com/corvidae/pixback/internal/queue"
	"github.com/corvidae/pixback/internal/storage"
	"github.com/corvidae/pixback/internal/store"
)

// Downloader is the C6 component.
type Downloader struct {
	client    *pixivapi.Client
	session   *auth.Session
	store     *store.Store
	outputDir string
	mirror    storage.Backend
	log       *logs.Logger
}

// New builds a Downloader. mirror may be nil to disable the optional
// remote replica.
func New(client *pixivapi.Client, session *auth.Session, st *store.Store, outputDir string, mirror storage.Backend, log *logs.Logger) *Downloader {
	return &Downloader{client: client, session: session, store: st, outputDir: outputDir, mirror: mirror, log: log}
}

// Download fetches every artifact for illust, writes the metadata document,
// and marks the illust downloaded in the store. On any artifact failure the
// temp file is removed and the work is left entirely undownloaded — a
// retry starts clean rather than resuming a partial set (§4.5:
// "never leaving half-written files with final names").
//
// stopCtx is checked between artifacts and passed to the pacer, not to the
// artifact transfer itself: a stop request must never abort an artifact
// already in flight, only keep the next one from starting (§8 scenario 6).
func (d *Downloader) Download(ctx, stopCtx context.Context, illust pixivapi.Illust, isBookmarked, isFollowingAuthor bool, bookmarkOrder *int64, pacer *queue.Pacer) error {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("downloader recovered from panic", "illust_id", illust.ID, "panic", fmt.Sprintf("%v", r))
		}
	}()

	arts, originalURL, err := d.resolveForIllust(ctx, illust)
	if err != nil {
		return err
	}
	if len(arts) == 0 {
		return errors.ErrWorkInvalid.WithMessagef("illust %d resolved to no downloadable artifacts", illust.ID)
	}

	dir := filepath.Join(d.outputDir, artifactDir(illust.ID))
	if err := paths.EnsureDirPath(dir); err != nil {
		return errors.ErrFilesystem.WithCause(err)
	}

	files := make([]store.DownloadedFile, 0, len(arts))
	for i, art := range arts {
		if i > 0 {
			if stopCtx.Err() != nil {
				return errors.ErrNetwork.WithCause(stopCtx.Err())
			}
			if pacer != nil {
				if err := pacer.Wait(stopCtx); err != nil {
					return errors.ErrNetwork.WithCause(err)
				}
			}
		}
		f, err := d.downloadOne(ctx, dir, art)
		if err != nil {
			return err
		}
		files = append(files, *f)
	}

	now := time.Now().UTC()
	doc := buildDocument(illust, originalURL, isBookmarked, isFollowingAuthor, bookmarkOrder, now)
	if err := d.writeMetadata(illust.ID, doc); err != nil {
		return err
	}

	if err := d.store.MarkDownloaded(illust.ID, files); err != nil {
		return err
	}
	return nil
}

// resolveForIllust returns the artifact list plus the origin URL recorded
// in the metadata document (the first artifact's URL, or the ugoira zip
// URL), fetching ugoira metadata when needed.
func (d *Downloader) resolveForIllust(ctx context.Context, illust pixivapi.Illust) ([]artifact, string, error) {
	if illust.Type != pixivapi.WorkTypeUgoira {
		arts := resolveArtifacts(illust)
		origin := ""
		if len(arts) > 0 {
			origin = arts[0].URL
		}
		return arts, origin, nil
	}

	meta, err := auth.Call(ctx, d.session, func(token string) (*pixivapi.UgoiraMetadata, error) {
		return d.client.UgoiraMetadata(ctx, token, illust.ID)
	})
	if err != nil {
		return nil, "", err
	}
	if meta.ZipURLs.Medium == "" {
		return nil, "", nil
	}
	return []artifact{{URL: meta.ZipURLs.Medium, FileName: fmt.Sprintf("%d.zip", illust.ID)}}, meta.ZipURLs.Medium, nil
}

// downloadOne streams one artifact to a temp file in dir, hashing as it
// goes, then renames it into place. On failure the temp file is removed.
func (d *Downloader) downloadOne(ctx context.Context, dir string, art artifact) (*store.DownloadedFile, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-"+art.FileName+"-*")
	if err != nil {
		return nil, errors.ErrFilesystem.WithCause(err)
	}
	tmpName := tmp.Name()
	abort := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	hasher, err := blake2b.New256(nil)
	if err != nil {
		abort()
		return nil, errors.ErrInternal.WithCause(err)
	}

	size, err := d.client.FetchImage(ctx, art.URL, io.MultiWriter(tmp, hasher))
	if err != nil {
		abort()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		abort()
		return nil, errors.ErrFilesystem.WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, errors.ErrFilesystem.WithCause(err)
	}

	finalPath := filepath.Join(dir, art.FileName)
	if err := os.Rename(tmpName, finalPath); err != nil {
		os.Remove(tmpName)
		return nil, errors.ErrFilesystem.WithCause(err)
	}

	if d.mirror != nil {
		if err := d.pushMirror(ctx, finalPath, art.FileName); err != nil {
			// The local artifact is already durable; a mirror failure is
			// logged, not fatal to the round — local is always authoritative.
			d.log.Warn("mirror upload failed", "file", art.FileName, "error", err)
		}
	}

	return &store.DownloadedFile{
		FilePath:     finalPath,
		ContentHash:  hex.EncodeToString(hasher.Sum(nil)),
		FileSize:     size,
		DownloadedAt: time.Now().UTC(),
	}, nil
}

func (d *Downloader) pushMirror(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return d.mirror.Upload(ctx, key, f, info.Size(), "")
}

// writeMetadata atomically writes the metadata document (§4.5,
// §6.1: temp+rename, human-readable UTF-8 JSON).
func (d *Downloader) writeMetadata(illustID int64, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	path := filepath.Join(d.outputDir, "metadata", fmt.Sprintf("%d.json", illustID))
	if err := paths.AtomicWriteFile(path, data, 0o644); err != nil {
		return errors.ErrFilesystem.WithCause(err)
	}
	return nil
}
