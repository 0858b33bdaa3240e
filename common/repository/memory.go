package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datapulse/catalog/common/models"
)

// memoryState backs the in-memory stores selected by RUN_MODE=TEST.
// One mutex serializes everything; WithTx runs the callback under it, so
// an ingest commit is observed atomically. Rollback of partial writes is
// not simulated.
type memoryState struct {
	mu        sync.Mutex
	platforms map[uuid.UUID]*models.Platform
	histories map[uuid.UUID]*models.PlatformSyncHistory
	datasets  map[uuid.UUID]*models.Dataset
	blobs     map[uuid.UUID]*models.Blob
	versions  map[uuid.UUID]*models.Version
}

// NewMemoryStores builds the full in-memory store bundle.
func NewMemoryStores() *Stores {
	s := &memoryState{
		platforms: map[uuid.UUID]*models.Platform{},
		histories: map[uuid.UUID]*models.PlatformSyncHistory{},
		datasets:  map[uuid.UUID]*models.Dataset{},
		blobs:     map[uuid.UUID]*models.Blob{},
		versions:  map[uuid.UUID]*models.Version{},
	}
	return &Stores{
		Tx:          &memoryTx{s: s},
		Platforms:   &memoryPlatforms{s},
		SyncHistory: &memoryHistories{s},
		Datasets:    &memoryDatasets{s},
		Blobs:       &memoryBlobs{s},
		Versions:    &memoryVersions{s},
	}
}

type memoryTx struct{ s *memoryState }

func (t *memoryTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memoryPlatforms struct{ s *memoryState }

func (m *memoryPlatforms) Create(ctx context.Context, p *models.Platform) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.LastSyncStatus == "" {
		p.LastSyncStatus = models.SyncUnknown
	}
	cp := *p
	m.s.platforms[p.ID] = &cp
	return nil
}

func (m *memoryPlatforms) GetByID(ctx context.Context, id uuid.UUID) (*models.Platform, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.platforms[id]
	if !ok {
		return nil, models.ErrPlatformNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryPlatforms) List(ctx context.Context) ([]*models.Platform, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*models.Platform, 0, len(m.s.platforms))
	for _, p := range m.s.platforms {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryPlatforms) Update(ctx context.Context, p *models.Platform) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.platforms[p.ID]; !ok {
		return models.ErrPlatformNotFound
	}
	cp := *p
	m.s.platforms[p.ID] = &cp
	return nil
}

type memoryHistories struct{ s *memoryState }

func (m *memoryHistories) Create(ctx context.Context, h *models.PlatformSyncHistory) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	cp := *h
	m.s.histories[h.ID] = &cp
	return nil
}

func (m *memoryHistories) Update(ctx context.Context, h *models.PlatformSyncHistory) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *h
	m.s.histories[h.ID] = &cp
	return nil
}

func (m *memoryHistories) ListByPlatform(ctx context.Context, platformID uuid.UUID, limit int) ([]*models.PlatformSyncHistory, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.PlatformSyncHistory
	for _, h := range m.s.histories {
		if h.PlatformID == platformID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryDatasets struct{ s *memoryState }

func (m *memoryDatasets) Create(ctx context.Context, d *models.Dataset) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	m.s.datasets[d.ID] = &cp
	return nil
}

func (m *memoryDatasets) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.datasets[id]
	if !ok {
		return nil, models.ErrDatasetNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memoryDatasets) GetBySlug(ctx context.Context, platformID uuid.UUID, slug string) (*models.Dataset, error) {
	return m.find(func(d *models.Dataset) bool {
		return d.PlatformID == platformID && d.Slug == slug
	})
}

func (m *memoryDatasets) GetByBUID(ctx context.Context, platformID uuid.UUID, buid string) (*models.Dataset, error) {
	return m.find(func(d *models.Dataset) bool {
		return d.PlatformID == platformID && d.BUID == buid
	})
}

func (m *memoryDatasets) find(match func(*models.Dataset) bool) (*models.Dataset, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, d := range m.s.datasets {
		if match(d) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, models.ErrDatasetNotFound
}

func (m *memoryDatasets) Update(ctx context.Context, d *models.Dataset) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.datasets[d.ID]; !ok {
		return models.ErrDatasetNotFound
	}
	cp := *d
	m.s.datasets[d.ID] = &cp
	return nil
}

func (m *memoryDatasets) UpdateSyncStatus(ctx context.Context, id uuid.UUID, status models.SyncStatus, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.datasets[id]
	if !ok {
		return models.ErrDatasetNotFound
	}
	t := at
	d.LastSync = &t
	d.LastSyncStatus = status
	return nil
}

func (m *memoryDatasets) SetLink(ctx context.Context, id uuid.UUID, linkedID *uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.datasets[id]
	if !ok {
		return models.ErrDatasetNotFound
	}
	d.LinkedDatasetID = linkedID
	return nil
}

func (m *memoryDatasets) ListByPlatform(ctx context.Context, platformID uuid.UUID) ([]*models.Dataset, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Dataset
	for _, d := range m.s.datasets {
		if d.PlatformID == platformID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *memoryDatasets) FindBySlugExcludingPlatform(ctx context.Context, slug string, platformID uuid.UUID) ([]*models.Dataset, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Dataset
	for _, d := range m.s.datasets {
		if d.Slug == slug && d.PlatformID != platformID && !d.IsDeleted {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

type memoryBlobs struct{ s *memoryState }

func (m *memoryBlobs) Upsert(ctx context.Context, b *models.Blob) (uuid.UUID, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.blobs {
		if existing.DatasetID == b.DatasetID && existing.Hash == b.Hash {
			return existing.ID, nil
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.SizeBytes = int64(len(b.Data))
	cp := *b
	m.s.blobs[b.ID] = &cp
	return b.ID, nil
}

func (m *memoryBlobs) GetByID(ctx context.Context, id uuid.UUID) (*models.Blob, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	b, ok := m.s.blobs[id]
	if !ok {
		return nil, models.ErrBlobNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memoryBlobs) GetByHash(ctx context.Context, datasetID uuid.UUID, hash string) (*models.Blob, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, b := range m.s.blobs {
		if b.DatasetID == datasetID && b.Hash == hash {
			cp := *b
			return &cp, nil
		}
	}
	return nil, models.ErrBlobNotFound
}

func (m *memoryBlobs) CountForDataset(ctx context.Context, datasetID uuid.UUID) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	count := 0
	for _, b := range m.s.blobs {
		if b.DatasetID == datasetID {
			count++
		}
	}
	return count, nil
}

func (m *memoryBlobs) DeleteAll(ctx context.Context) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.blobs = map[uuid.UUID]*models.Blob{}
	return nil
}

type memoryVersions struct{ s *memoryState }

func (m *memoryVersions) Append(ctx context.Context, v *models.Version) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	cp := *v
	m.s.versions[v.ID] = &cp
	return nil
}

func (m *memoryVersions) List(ctx context.Context, datasetID uuid.UUID, page, pageSize int) ([]*models.Version, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	all := m.sorted(datasetID)
	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// sorted returns copies of a dataset's versions, newest first.
func (m *memoryVersions) sorted(datasetID uuid.UUID) []*models.Version {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Version
	for _, v := range m.s.versions {
		if v.DatasetID == datasetID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (m *memoryVersions) GetByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	v, ok := m.s.versions[id]
	if !ok {
		return nil, models.ErrVersionNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memoryVersions) GetLast(ctx context.Context, datasetID uuid.UUID) (*models.Version, error) {
	all := m.sorted(datasetID)
	if len(all) == 0 {
		return nil, models.ErrVersionNotFound
	}
	return all[0], nil
}

func (m *memoryVersions) Update(ctx context.Context, v *models.Version) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.versions[v.ID]; !ok {
		return models.ErrVersionNotFound
	}
	cp := *v
	m.s.versions[v.ID] = &cp
	return nil
}

func (m *memoryVersions) ClearBlobRefs(ctx context.Context) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, v := range m.s.versions {
		v.BlobID = nil
	}
	return nil
}

func (m *memoryVersions) StreamRaw(ctx context.Context, fn func(v *models.Version) error) error {
	m.s.mu.Lock()
	var all []*models.Version
	for _, v := range m.s.versions {
		cp := *v
		all = append(all, &cp)
	}
	m.s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].DatasetID != all[j].DatasetID {
			return all[i].DatasetID.String() < all[j].DatasetID.String()
		}
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	for _, v := range all {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}
