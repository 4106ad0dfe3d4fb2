// Package service creates, reads and garbage-collects entry snapshots.
// It is the only writer of the archival storage area: creation and cleanup
// both go through an Archiver, which keeps snapshots still being written
// out of cleanup's reach.
package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"entrypass/internal/archive/assets"
	"entrypass/internal/archive/crypto"
	"entrypass/internal/archive/models"
	"entrypass/internal/platform/metrics"
	"entrypass/internal/traveler"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/sentinel"
	"entrypass/pkg/requestcontext"
)

const (
	defaultCopyConcurrency = 4
	defaultOrphanGrace     = time.Hour
)

type Store interface {
	Create(ctx context.Context, snap *models.Snapshot) error
	Get(ctx context.Context, snapshotID id.SnapshotID) (*models.Snapshot, error)
	List(ctx context.Context) ([]models.Summary, error)
	ListByEntryInfo(ctx context.Context, entryInfoID id.EntryInfoID) ([]models.Summary, error)
	Delete(ctx context.Context, snapshotID id.SnapshotID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Request describes one archival event.
type Request struct {
	EntryInfoID    id.EntryInfoID
	Status         models.SnapshotStatus
	CreationMethod string
}

type Archiver struct {
	store     Store
	assets    assets.Store
	source    EntrySource
	encryptor crypto.Encryptor

	logger          *slog.Logger
	auditPublisher  AuditPublisher
	metrics         *metrics.Metrics
	appVersion      string
	copyConcurrency int
	orphanGrace     time.Duration

	mu       sync.Mutex
	inFlight map[id.SnapshotID]struct{}
}

type Option func(*Archiver)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) { a.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(a *Archiver) { a.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Archiver) { a.metrics = m }
}

// WithEncryptor seals the data copies of every new snapshot.
func WithEncryptor(enc crypto.Encryptor) Option {
	return func(a *Archiver) { a.encryptor = enc }
}

func WithAppVersion(v string) Option {
	return func(a *Archiver) { a.appVersion = v }
}

func WithCopyConcurrency(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.copyConcurrency = n
		}
	}
}

// WithOrphanGrace sets how old an unreferenced directory must be before
// orphan cleanup reclaims it.
func WithOrphanGrace(d time.Duration) Option {
	return func(a *Archiver) {
		if d >= 0 {
			a.orphanGrace = d
		}
	}
}

func New(store Store, assetStore assets.Store, source EntrySource, opts ...Option) *Archiver {
	a := &Archiver{
		store:           store,
		assets:          assetStore,
		source:          source,
		logger:          slog.Default(),
		copyConcurrency: defaultCopyConcurrency,
		orphanGrace:     defaultOrphanGrace,
		inFlight:        make(map[id.SnapshotID]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateSnapshot copies the entry's current data and photos into a new
// immutable snapshot. Photo problems and encryption failures degrade the
// snapshot; only a missing entry or a failed record write abort it.
func (a *Archiver) CreateSnapshot(ctx context.Context, req Request) (*models.Snapshot, error) {
	if !req.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid snapshot status")
	}
	src, err := a.source.LoadSnapshotSource(ctx, req.EntryInfoID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "entry info not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load snapshot source")
	}

	snapshotID := id.SnapshotID(uuid.New())
	a.track(snapshotID)
	defer a.untrack(snapshotID)

	snap := &models.Snapshot{
		ID:            snapshotID,
		EntryInfoID:   src.Info.ID,
		UserID:        src.Info.UserID,
		DestinationID: src.Info.DestinationID,
		Status:        req.Status,
		CreatedAt:     requestcontext.Now(ctx),
		Version:       models.SchemaVersion,
		Metadata:      a.metadata(ctx, req.CreationMethod),
		Completeness: models.Completeness{
			Percent:    src.Info.Completion.Percent(),
			Categories: src.Info.Completion,
		},
	}
	copyData(snap, src)

	manifest, err := a.copyPhotos(ctx, snapshotID, src.Data.Funds)
	if err != nil {
		return nil, err
	}
	snap.PhotoManifest = manifest

	a.seal(ctx, snap)

	if err := a.store.Create(ctx, snap); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist snapshot")
	}

	a.emit(ctx, audit.EventSnapshotCreated, snap.UserID, snap.ID.String(), string(snap.Status), map[string]string{
		"entry_info_id": snap.EntryInfoID.String(),
		"photos":        fmt.Sprint(len(snap.PhotoManifest)),
		"encrypted":     fmt.Sprint(snap.Encryption != nil),
	})
	return snap, nil
}

func copyData(snap *models.Snapshot, src Source) {
	data := src.Data
	snap.Passport = &data.Passport
	snap.PersonalInfo = &data.PersonalInfo
	snap.Travel = &data.Travel
	snap.Funds = append([]traveler.FundItem(nil), data.Funds...)
	if src.Pack != nil && src.Pack.TDACSubmission != nil {
		sub := *src.Pack.TDACSubmission
		snap.TDACSubmission = &sub
	}
}

func (a *Archiver) metadata(ctx context.Context, method string) models.Metadata {
	if method == "" {
		method = "manual"
	}
	md := models.Metadata{
		AppVersion:     a.appVersion,
		ClientIP:       requestcontext.ClientIP(ctx),
		CreationMethod: method,
	}
	if d, ok := requestcontext.DeviceInfo(ctx); ok {
		md.Platform = d.Platform
		md.OS = d.OS
		md.Browser = d.Browser
		md.Mobile = d.Mobile
	}
	return md
}

// copyPhotos builds the manifest in fund order. Copies run concurrently;
// only context cancellation aborts.
func (a *Archiver) copyPhotos(ctx context.Context, snapshotID id.SnapshotID, funds []traveler.FundItem) ([]models.PhotoManifestItem, error) {
	manifest := make([]models.PhotoManifestItem, len(funds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.copyConcurrency)
	for i, fund := range funds {
		g.Go(func() error {
			manifest[i] = a.copyPhoto(gctx, snapshotID, fund)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, item := range manifest {
		a.metrics.IncrementSnapshotPhoto(string(item.Status))
		if item.Status == models.PhotoFailed || item.Status == models.PhotoMissing {
			a.logger.WarnContext(ctx, "snapshot photo not archived",
				"snapshot_id", snapshotID, "fund_item_id", item.FundItemID,
				"status", item.Status, "error", item.Error)
		}
	}
	return manifest, nil
}

func (a *Archiver) copyPhoto(ctx context.Context, snapshotID id.SnapshotID, fund traveler.FundItem) models.PhotoManifestItem {
	item := models.PhotoManifestItem{FundItemID: fund.ID, OriginalPath: fund.PhotoPath}
	if fund.PhotoPath == "" {
		item.Status = models.PhotoNone
		return item
	}

	if err := assets.ValidatePhotoSource(fund.PhotoPath); err != nil {
		item.Status = models.PhotoFailed
		item.Error = err.Error()
		return item
	}
	srcSize, err := a.assets.Stat(ctx, fund.PhotoPath)
	if err != nil {
		item.Status = models.PhotoFailed
		if errors.Is(err, sentinel.ErrNotFound) {
			item.Status = models.PhotoMissing
		}
		item.Error = err.Error()
		return item
	}

	item.FileName = photoFileName(fund)
	item.SnapshotPath = assets.PhotoPath(snapshotID.String(), item.FileName)
	if _, err := a.assets.Copy(ctx, fund.PhotoPath, item.SnapshotPath); err != nil {
		item.Status = models.PhotoFailed
		if errors.Is(err, sentinel.ErrNotFound) {
			item.Status = models.PhotoMissing
		}
		item.Error = err.Error()
		return item
	}

	dstSize, err := a.assets.Stat(ctx, item.SnapshotPath)
	if err != nil {
		item.Status = models.PhotoFailed
		item.Error = "verify copy: " + err.Error()
		return item
	}
	item.FileSize = dstSize
	if dstSize != srcSize {
		item.Status = models.PhotoFailed
		item.Error = fmt.Sprintf("size mismatch: source %d bytes, copy %d bytes", srcSize, dstSize)
		return item
	}

	sum, err := a.checksum(ctx, item.SnapshotPath)
	if err != nil {
		item.Status = models.PhotoFailed
		item.Error = "checksum copy: " + err.Error()
		return item
	}
	item.Checksum = sum
	item.Status = models.PhotoSuccess
	return item
}

func photoFileName(fund traveler.FundItem) string {
	base := path.Base(fund.PhotoPath)
	if fund.ID == "" {
		return base
	}
	return fund.ID + "-" + base
}

func (a *Archiver) checksum(ctx context.Context, p string) (string, error) {
	rc, err := a.assets.Open(ctx, p)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	h := blake3.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// seal encrypts the data copies in place. Failure leaves the snapshot
// unencrypted.
func (a *Archiver) seal(ctx context.Context, snap *models.Snapshot) {
	if a.encryptor == nil {
		return
	}
	plain, err := json.Marshal(snap.Sealed())
	if err != nil {
		a.logger.WarnContext(ctx, "snapshot encryption skipped", "snapshot_id", snap.ID, "error", err)
		return
	}
	res, err := a.encryptor.Encrypt(plain, snap.ID.String())
	if err != nil {
		a.logger.WarnContext(ctx, "snapshot encryption failed, storing unencrypted", "snapshot_id", snap.ID, "error", err)
		return
	}
	snap.Seal(res.Method, res.Ciphertext)
}

func (a *Archiver) GetSnapshot(ctx context.Context, snapshotID id.SnapshotID) (*models.Snapshot, error) {
	snap, err := a.store.Get(ctx, snapshotID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "snapshot not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load snapshot")
	}
	return snap, nil
}

func (a *Archiver) ListForEntry(ctx context.Context, entryInfoID id.EntryInfoID) ([]models.Summary, error) {
	list, err := a.store.ListByEntryInfo(ctx, entryInfoID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list snapshots")
	}
	return list, nil
}

// CleanupExpired deletes the snapshots policy selects. Each record is
// deleted before its directory, so an interrupted run leaves an orphan for
// CleanupOrphans rather than a record pointing at missing files.
func (a *Archiver) CleanupExpired(ctx context.Context, policy models.RetentionPolicy) (models.CleanupResult, error) {
	var result models.CleanupResult
	if err := policy.Validate(); err != nil {
		return result, err
	}
	list, err := a.store.List(ctx)
	if err != nil {
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list snapshots")
	}

	for _, snapshotID := range policy.Candidates(list, requestcontext.Now(ctx)) {
		if a.isInFlight(snapshotID) {
			continue
		}
		if err := a.store.Delete(ctx, snapshotID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete snapshot")
		}
		freed, err := a.assets.RemoveDir(ctx, snapshotID.String())
		if err != nil {
			a.logger.WarnContext(ctx, "snapshot assets left for orphan cleanup", "snapshot_id", snapshotID, "error", err)
		}
		result.DeletedCount++
		result.FreedBytes += freed
		a.emit(ctx, audit.EventSnapshotDeleted, requestcontext.UserID(ctx), snapshotID.String(), "retention", map[string]string{
			"freed_bytes": fmt.Sprint(freed),
		})
	}
	a.metrics.RecordCleanup(result.DeletedCount, result.FreedBytes)
	a.logger.InfoContext(ctx, "snapshot retention cleanup finished",
		"deleted", result.DeletedCount, "freed_bytes", result.FreedBytes)
	return result, nil
}

// CleanupOrphans reclaims snapshot directories with no record. Directories
// of snapshots being created and directories touched within the grace
// period are left alone.
func (a *Archiver) CleanupOrphans(ctx context.Context) (models.OrphanResult, error) {
	var result models.OrphanResult
	dirs, err := a.assets.ListSnapshotDirs(ctx)
	if err != nil {
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list archival storage")
	}
	list, err := a.store.List(ctx)
	if err != nil {
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list snapshots")
	}
	known := make(map[string]struct{}, len(list))
	for _, s := range list {
		known[s.ID.String()] = struct{}{}
	}

	now := requestcontext.Now(ctx)
	for _, dir := range dirs {
		if _, ok := known[dir.SnapshotID]; ok {
			continue
		}
		if parsed, err := id.ParseSnapshotID(dir.SnapshotID); err == nil && a.isInFlight(parsed) {
			continue
		}
		if now.Sub(dir.ModTime) < a.orphanGrace {
			continue
		}
		freed, err := a.assets.RemoveDir(ctx, dir.SnapshotID)
		if err != nil {
			a.logger.WarnContext(ctx, "failed to reclaim orphan snapshot dir", "dir", dir.SnapshotID, "error", err)
			continue
		}
		result.ReclaimedCount++
		result.FreedBytes += freed
	}

	if result.ReclaimedCount > 0 {
		a.emit(ctx, audit.EventSnapshotOrphansReclaimed, requestcontext.UserID(ctx), "archive", "orphan_cleanup", map[string]string{
			"reclaimed":   fmt.Sprint(result.ReclaimedCount),
			"freed_bytes": fmt.Sprint(result.FreedBytes),
		})
	}
	a.metrics.RecordOrphans(result.ReclaimedCount, result.FreedBytes)
	return result, nil
}

func (a *Archiver) track(snapshotID id.SnapshotID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight[snapshotID] = struct{}{}
}

func (a *Archiver) untrack(snapshotID id.SnapshotID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, snapshotID)
}

func (a *Archiver) isInFlight(snapshotID id.SnapshotID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.inFlight[snapshotID]
	return ok
}

func (a *Archiver) emit(ctx context.Context, event audit.AuditEvent, userID id.UserID, subject, reason string, details map[string]string) {
	a.logger.InfoContext(ctx, string(event), "subject", subject, "reason", reason, "log_type", "audit")
	if a.auditPublisher == nil {
		return
	}
	err := a.auditPublisher.Emit(ctx, audit.Event{
		Category: event.Category(),
		UserID:   userID,
		Subject:  subject,
		Action:   string(event),
		Reason:   reason,
		Details:  details,
	})
	if err != nil {
		a.logger.WarnContext(ctx, "failed to publish audit event", "event", string(event), "error", err)
	}
}
