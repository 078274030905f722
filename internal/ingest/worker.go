package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/binz0209/vihis/internal/blob"
	"github.com/binz0209/vihis/internal/models"
	"github.com/binz0209/vihis/internal/store"
)

const sourceCleanupTimeout = 10 * time.Second

// process runs one job end to end: dedup, archive, source record,
// pipeline run, page count update.
func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID, "source_id", job.SourceID, "filename", job.Filename)
	defer job.releaseFileData()

	if !job.force {
		existing, err := o.sources.FindSourceByHash(ctx, job.ContentHash)
		switch {
		case err == nil && existing != nil:
			log.Info("duplicate document, skipping", "existing_source_id", existing.ID)
			job.setSourceID(existing.ID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		case err != nil && !errors.Is(err, store.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}

	data := job.FileData()
	job.SetStatus(StatusExtracting, "archiving")
	url, err := o.archive.Put(ctx, blob.ObjectKey(job.SourceID, job.Filename), data, contentType(job.Filename))
	if err != nil {
		log.Warn("archive upload failed", "error", err)
		job.AddError(fmt.Sprintf("archive: %s", err))
	}

	src := &models.Source{
		ID:          job.SourceID,
		Title:       sourceTitle(job),
		FileName:    job.Filename,
		ContentHash: job.ContentHash,
		StorageURL:  url,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.sources.CreateSource(ctx, src); err != nil {
		log.Error("create source failed", "error", err)
		job.AddError(fmt.Sprintf("source: %s", err))
		job.SetStatus(StatusFailed, "source")
		return
	}

	job.SetStatus(StatusExtracting, "extracting")
	res, err := o.pipeline.Run(ctx, Document{
		SourceID: job.SourceID,
		Filename: job.Filename,
		Body:     bytes.NewReader(data),
		Progress: job,
	}, job.profile)
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(err.Error())
		o.dropSource(ctx, job)
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	job.SetPages(res.RawPageCount, res.PageCount)
	if err := o.sources.UpdateSourcePageCount(ctx, job.SourceID, res.PageCount); err != nil {
		log.Warn("page count update failed", "error", err)
		job.AddError(fmt.Sprintf("page count: %s", err))
	}

	if res.Stored > 0 && o.onIngested != nil {
		o.onIngested(job.SourceID)
	}

	switch {
	case len(res.Chunks) == 0:
		job.AddError("no extractable content")
		o.dropSource(ctx, job)
		job.SetStatus(StatusFailed, "chunking")
	case res.Stored == 0:
		o.dropSource(ctx, job)
		job.SetStatus(StatusFailed, "storing")
	case res.Stored < len(res.Chunks):
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job finished", "status", job.Snapshot().Status, "chunks", len(res.Chunks), "stored", res.Stored)
}

// dropSource removes the source record of a job that stored nothing, so a
// later upload of the same bytes is not skipped as a duplicate. It runs
// even when ctx is already cancelled.
func (o *Orchestrator) dropSource(ctx context.Context, job *Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sourceCleanupTimeout)
	defer cancel()
	if err := o.sources.DeleteSource(ctx, job.SourceID); err != nil && !errors.Is(err, store.ErrNotFound) {
		o.log.Warn("source cleanup failed", "job_id", job.ID, "source_id", job.SourceID, "error", err)
		job.AddError(fmt.Sprintf("source cleanup: %s", err))
	}
}

func (j *Job) setSourceID(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.SourceID = id
}

func sourceTitle(job *Job) string {
	if t := strings.TrimSpace(job.Title); t != "" {
		return t
	}
	base := filepath.Base(job.Filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
