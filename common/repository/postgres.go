package repository

import "github.com/datapulse/catalog/common/db"

// NewPostgresStores bundles the Postgres-backed stores over one pool.
// The pool itself is the TxRunner: repository methods pick the active
// transaction out of the context.
func NewPostgresStores(d *db.DB) *Stores {
	return &Stores{
		Tx:          d,
		Platforms:   NewPlatformRepository(d),
		SyncHistory: NewSyncHistoryRepository(d),
		Datasets:    NewDatasetRepository(d),
		Blobs:       NewBlobRepository(d),
		Versions:    NewVersionRepository(d),
	}
}
