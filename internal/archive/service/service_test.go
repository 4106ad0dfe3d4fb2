package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"entrypass/internal/archive/assets"
	"entrypass/internal/archive/crypto"
	"entrypass/internal/archive/models"
	archivestore "entrypass/internal/archive/store"
	entry "entrypass/internal/entry/models"
	"entrypass/internal/traveler"
	"entrypass/internal/traveler/travelertest"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/platform/audit"
	"entrypass/pkg/platform/audit/publisher"
	auditmemory "entrypass/pkg/platform/audit/store/memory"
	"entrypass/pkg/requestcontext"
	"entrypass/pkg/testutil"
)

type sourceFunc func(ctx context.Context, entryInfoID id.EntryInfoID) (Source, error)

func (f sourceFunc) LoadSnapshotSource(ctx context.Context, entryInfoID id.EntryInfoID) (Source, error) {
	return f(ctx, entryInfoID)
}

// shrinkingAssets reports copies one byte short, as a truncated write would.
type shrinkingAssets struct {
	assets.Store
}

func (s shrinkingAssets) Stat(ctx context.Context, p string) (int64, error) {
	n, err := s.Store.Stat(ctx, p)
	if err == nil && strings.HasPrefix(p, "snapshots/") {
		n--
	}
	return n, err
}

type failingEncryptor struct{}

func (failingEncryptor) Encrypt([]byte, string) (crypto.Result, error) {
	return crypto.Result{}, errors.New("kms unavailable")
}

type ArchiverSuite struct {
	suite.Suite
	root   string
	assets *assets.FSStore
	store  *archivestore.InMemoryStore
	audit  *auditmemory.InMemoryStore
	info   *entry.EntryInfo
	pack   *entry.EntryPack
	data   traveler.Data
	now    time.Time
	ctx    context.Context
}

func TestArchiverSuite(t *testing.T) {
	suite.Run(t, new(ArchiverSuite))
}

func (s *ArchiverSuite) SetupTest() {
	s.root = s.T().TempDir()
	var err error
	s.assets, err = assets.NewFSStore(s.root)
	s.Require().NoError(err)
	s.store = archivestore.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()
	s.now = time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.info, err = entry.NewEntryInfo(entry.EntryInfoKey{
		UserID:        id.UserID(uuid.New()),
		DestinationID: "TH",
		TripID:        "trip-1",
	}, s.now.Add(-72*time.Hour))
	s.Require().NoError(err)
	s.info.Completion = entry.CompletionMetrics{
		"passport": entry.NewCategoryCompletion(7, 7),
		"travel":   entry.NewCategoryCompletion(9, 10),
	}

	s.pack = entry.NewEntryPack(id.EntryPackID(uuid.New()), s.info.ID, s.now.Add(-48*time.Hour))
	s.pack.TDACSubmission = &entry.ArrivalCardSubmission{
		ArrCardNo:        "TDAC-1",
		QRURI:            "qr://TDAC-1",
		SubmittedAt:      s.now.Add(-24 * time.Hour),
		SubmissionMethod: entry.MethodHybrid,
		Status:           entry.AttemptSuccess,
	}

	s.data = travelertest.WithEntryInfoID(s.info.ID)
	s.data.Funds = []traveler.FundItem{
		{ID: "fund-1", Type: "cash", Amount: 20000, Currency: "THB", PhotoPath: "photos/fund-1.jpg"},
		{ID: "fund-2", Type: "card", Amount: 500, Currency: "USD"},
		{ID: "fund-3", Type: "cash", Amount: 100, Currency: "EUR", PhotoPath: "photos/gone.jpg"},
	}
	s.seed("photos/fund-1.jpg", []byte("jpeg-fund-one"))
}

func (s *ArchiverSuite) seed(p string, data []byte) {
	full := filepath.Join(s.root, filepath.FromSlash(p))
	s.Require().NoError(os.MkdirAll(filepath.Dir(full), 0o750))
	s.Require().NoError(os.WriteFile(full, data, 0o600))
}

func (s *ArchiverSuite) source() EntrySource {
	return sourceFunc(func(_ context.Context, entryInfoID id.EntryInfoID) (Source, error) {
		if entryInfoID != s.info.ID {
			return Source{}, dErrors.New(dErrors.CodeNotFound, "entry info not found")
		}
		return Source{Info: s.info, Pack: s.pack, Data: s.data}, nil
	})
}

func (s *ArchiverSuite) archiver(opts ...Option) *Archiver {
	base := []Option{
		WithLogger(testutil.DiscardLogger()),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithAppVersion("1.4.0"),
	}
	return New(s.store, s.assets, s.source(), append(base, opts...)...)
}

func (s *ArchiverSuite) request() Request {
	return Request{EntryInfoID: s.info.ID, Status: models.SnapshotCompleted, CreationMethod: "on_submit"}
}

func manifestByFund(snap *models.Snapshot) map[string]models.PhotoManifestItem {
	out := map[string]models.PhotoManifestItem{}
	for _, item := range snap.PhotoManifest {
		out[item.FundItemID] = item
	}
	return out
}

// ===========================================
// Snapshot creation
// ===========================================

func (s *ArchiverSuite) TestCreateSnapshot_PhotoFromSnapshotStorageIsNotCopied() {
	other := assets.PhotoPath(uuid.NewString(), "fund-1.jpg")
	s.seed(other, []byte("another snapshot's copy"))
	s.data.Funds = []traveler.FundItem{{ID: "fund-1", Type: "cash", Amount: 1, Currency: "THB", PhotoPath: other}}

	snap, err := s.archiver().CreateSnapshot(s.ctx, s.request())
	s.Require().NoError(err)

	item := manifestByFund(snap)["fund-1"]
	s.Equal(models.PhotoFailed, item.Status)
	s.Empty(item.SnapshotPath)
	s.Contains(item.Error, "snapshot storage")
}

func (s *ArchiverSuite) TestCreateSnapshot() {
	ctx := requestcontext.WithDevice(requestcontext.WithClientMetadata(s.ctx, "203.0.113.9", "ua"),
		requestcontext.Device{Platform: "iOS", OS: "iOS 19", Browser: "Safari", Mobile: true})

	snap, err := s.archiver().CreateSnapshot(ctx, s.request())
	s.Require().NoError(err)

	s.Equal(s.info.ID, snap.EntryInfoID)
	s.Equal(models.SnapshotCompleted, snap.Status)
	s.Equal(models.SchemaVersion, snap.Version)
	s.Equal(s.now, snap.CreatedAt)
	s.Equal("TDAC-1", snap.TDACSubmission.ArrCardNo)
	s.Equal("K12345678", snap.Passport.PassportNo)
	s.Equal(94, snap.Completeness.Percent)
	s.Equal(models.Metadata{
		AppVersion: "1.4.0", Platform: "iOS", OS: "iOS 19", Browser: "Safari", Mobile: true,
		ClientIP: "203.0.113.9", CreationMethod: "on_submit",
	}, snap.Metadata)

	s.Run("manifest degrades per photo", func() {
		s.Require().Len(snap.PhotoManifest, 3)
		s.Equal("fund-1", snap.PhotoManifest[0].FundItemID, "manifest keeps fund order")
		items := manifestByFund(snap)

		ok := items["fund-1"]
		s.Equal(models.PhotoSuccess, ok.Status)
		s.EqualValues(len("jpeg-fund-one"), ok.FileSize)
		s.Equal(assets.PhotoPath(snap.ID.String(), "fund-1-fund-1.jpg"), ok.SnapshotPath)
		s.Len(ok.Checksum, 64)

		s.Equal(models.PhotoNone, items["fund-2"].Status)
		s.Empty(items["fund-2"].SnapshotPath)

		s.Equal(models.PhotoMissing, items["fund-3"].Status)
		s.NotEmpty(items["fund-3"].Error)
	})

	s.Run("copied file is readable from archival storage", func() {
		copied, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(manifestByFund(snap)["fund-1"].SnapshotPath)))
		s.Require().NoError(err)
		s.Equal("jpeg-fund-one", string(copied))
	})

	s.Run("record is persisted and audited", func() {
		stored, err := s.store.Get(s.ctx, snap.ID)
		s.Require().NoError(err)
		s.Equal(snap.PhotoManifest, stored.PhotoManifest)

		events, err := s.audit.ListBySubject(s.ctx, snap.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventSnapshotCreated), events[0].Action)
		s.Equal(audit.CategoryCompliance, events[0].Category)
	})
}

func (s *ArchiverSuite) TestCreateSnapshotSizeMismatchIsFailed() {
	a := New(s.store, shrinkingAssets{s.assets}, s.source(), WithLogger(testutil.DiscardLogger()))

	snap, err := a.CreateSnapshot(s.ctx, s.request())
	s.Require().NoError(err)

	item := manifestByFund(snap)["fund-1"]
	s.Equal(models.PhotoFailed, item.Status)
	s.Contains(item.Error, "size mismatch")
	s.Empty(item.Checksum)
}

func (s *ArchiverSuite) TestCreateSnapshotMissingEntry() {
	_, err := s.archiver().CreateSnapshot(s.ctx, Request{EntryInfoID: id.EntryInfoID(uuid.New()), Status: models.SnapshotCancelled})

	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	list, listErr := s.store.List(s.ctx)
	s.Require().NoError(listErr)
	s.Empty(list)
}

func (s *ArchiverSuite) TestCreateSnapshotRejectsUnknownStatus() {
	_, err := s.archiver().CreateSnapshot(s.ctx, Request{EntryInfoID: s.info.ID, Status: "deleted"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ArchiverSuite) TestCreateSnapshotWithoutPack() {
	s.pack = nil
	snap, err := s.archiver().CreateSnapshot(s.ctx, Request{EntryInfoID: s.info.ID, Status: models.SnapshotCancelled})
	s.Require().NoError(err)
	s.Nil(snap.TDACSubmission)
}

// ===========================================
// Encryption
// ===========================================

func (s *ArchiverSuite) TestEncryptedSnapshot() {
	enc, err := crypto.NewXChaCha(bytes.Repeat([]byte{9}, 32))
	s.Require().NoError(err)

	snap, err := s.archiver(WithEncryptor(enc)).CreateSnapshot(s.ctx, s.request())
	s.Require().NoError(err)

	s.Nil(snap.Passport)
	s.Nil(snap.TDACSubmission)
	s.Require().NotNil(snap.Encryption)
	s.Equal(crypto.MethodXChaCha, snap.Encryption.Method)
	s.Len(snap.PhotoManifest, 3, "manifest stays readable")

	plain, err := enc.Open(snap.Encryption.Payload, snap.ID.String())
	s.Require().NoError(err)
	var sealed models.Sealed
	s.Require().NoError(json.Unmarshal(plain, &sealed))
	s.Equal("K12345678", sealed.Passport.PassportNo)
	s.Equal("TDAC-1", sealed.TDACSubmission.ArrCardNo)
}

func (s *ArchiverSuite) TestEncryptionFailureStoresPlainSnapshot() {
	snap, err := s.archiver(WithEncryptor(failingEncryptor{})).CreateSnapshot(s.ctx, s.request())
	s.Require().NoError(err)

	s.Nil(snap.Encryption)
	s.Require().NotNil(snap.Passport)
	s.Equal("K12345678", snap.Passport.PassportNo)
}

// ===========================================
// Retention
// ===========================================

func (s *ArchiverSuite) createAt(a *Archiver, age time.Duration, status models.SnapshotStatus) *models.Snapshot {
	ctx := requestcontext.WithTime(context.Background(), s.now.Add(-age))
	snap, err := a.CreateSnapshot(ctx, Request{EntryInfoID: s.info.ID, Status: status})
	s.Require().NoError(err)
	return snap
}

func (s *ArchiverSuite) TestCleanupExpired() {
	a := s.archiver()
	day := 24 * time.Hour
	young := s.createAt(a, 10*day, models.SnapshotCancelled)
	oldCompleted := s.createAt(a, 95*day, models.SnapshotCompleted)
	ancient := s.createAt(a, 200*day, models.SnapshotExpired)

	res, err := a.CleanupExpired(s.ctx, models.RetentionPolicy{MaxAgeDays: 90, KeepCompleted: true})
	s.Require().NoError(err)

	s.Equal(1, res.DeletedCount)
	s.EqualValues(len("jpeg-fund-one"), res.FreedBytes)

	_, err = a.GetSnapshot(s.ctx, ancient.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	for _, kept := range []*models.Snapshot{young, oldCompleted} {
		_, err := a.GetSnapshot(s.ctx, kept.ID)
		s.NoError(err)
	}
	_, err = s.assets.Stat(s.ctx, manifestByFund(ancient)["fund-1"].SnapshotPath)
	s.Error(err, "assets of deleted snapshots are removed")

	events, err := s.audit.ListBySubject(s.ctx, ancient.ID.String())
	s.Require().NoError(err)
	s.Equal(string(audit.EventSnapshotDeleted), events[len(events)-1].Action)
}

func (s *ArchiverSuite) TestCleanupExpiredRejectsNegativePolicy() {
	_, err := s.archiver().CleanupExpired(s.ctx, models.RetentionPolicy{MaxAgeDays: -1})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// ===========================================
// Orphans
// ===========================================

func (s *ArchiverSuite) TestCleanupOrphans() {
	a := s.archiver(WithOrphanGrace(time.Hour))
	kept := s.createAt(a, 0, models.SnapshotCompleted)

	orphan := uuid.NewString()
	s.seed(assets.PhotoPath(orphan, "x.jpg"), []byte("12345"))
	inFlight := id.SnapshotID(uuid.New())
	s.seed(assets.PhotoPath(inFlight.String(), "y.jpg"), []byte("123"))
	a.track(inFlight)

	s.Run("fresh directories are inside the grace period", func() {
		res, err := a.CleanupOrphans(requestcontext.WithTime(context.Background(), time.Now()))
		s.Require().NoError(err)
		s.Zero(res.ReclaimedCount)
	})

	s.Run("old orphans are reclaimed", func() {
		later := requestcontext.WithTime(context.Background(), time.Now().Add(2*time.Hour))
		res, err := a.CleanupOrphans(later)
		s.Require().NoError(err)
		s.Equal(1, res.ReclaimedCount)
		s.EqualValues(5, res.FreedBytes)

		_, err = s.assets.Stat(s.ctx, assets.PhotoPath(orphan, "x.jpg"))
		s.Error(err)
		_, err = s.assets.Stat(s.ctx, assets.PhotoPath(inFlight.String(), "y.jpg"))
		s.NoError(err, "in-flight snapshot is untouched")
		_, err = s.assets.Stat(s.ctx, manifestByFund(kept)["fund-1"].SnapshotPath)
		s.NoError(err, "referenced snapshot is untouched")
	})
}

// ===========================================
// Store source adapter
// ===========================================

type stubEntries struct {
	info    *entry.EntryInfo
	pack    *entry.EntryPack
	packErr error
}

func (e stubEntries) GetEntryInfo(_ context.Context, entryInfoID id.EntryInfoID) (*entry.EntryInfo, error) {
	if e.info == nil || e.info.ID != entryInfoID {
		return nil, dErrors.New(dErrors.CodeNotFound, "entry info not found")
	}
	return e.info, nil
}

func (e stubEntries) GetPack(context.Context, id.EntryInfoID) (*entry.EntryPack, error) {
	return e.pack, e.packErr
}

type stubTravelers struct {
	data traveler.Data
	err  error
}

func (t stubTravelers) Get(context.Context, id.EntryInfoID) (traveler.Data, error) {
	return t.data, t.err
}

func (s *ArchiverSuite) TestStoreSource() {
	notFound := dErrors.New(dErrors.CodeNotFound, "missing")

	s.Run("missing pack and data are tolerated", func() {
		src, err := NewStoreSource(stubEntries{info: s.info, packErr: notFound}, stubTravelers{err: notFound}).
			LoadSnapshotSource(s.ctx, s.info.ID)
		s.Require().NoError(err)
		s.Nil(src.Pack)
		s.Empty(src.Data.Funds)
	})

	s.Run("missing entry info is not found", func() {
		_, err := NewStoreSource(stubEntries{}, stubTravelers{}).LoadSnapshotSource(s.ctx, s.info.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("store failures propagate", func() {
		_, err := NewStoreSource(stubEntries{info: s.info, pack: s.pack}, stubTravelers{err: errors.New("redis down")}).
			LoadSnapshotSource(s.ctx, s.info.ID)
		s.Error(err)
	})
}
