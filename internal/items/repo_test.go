package items

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nestfin/nestfin-backend/pkg/db/models"
	"github.com/nestfin/nestfin-backend/pkg/enums"
)

func setupItemsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS item_connections (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL UNIQUE,
  access_token TEXT NOT NULL,
  institution_id TEXT NOT NULL,
  institution_name TEXT NOT NULL,
  sync_status TEXT NOT NULL DEFAULT 'active',
  error_message TEXT,
  last_sync_at DATETIME,
  webhook_last_received_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedConnection(t *testing.T, db *gorm.DB, itemID string, status enums.ItemSyncStatus) *models.ItemConnection {
	t.Helper()

	conn := &models.ItemConnection{
		ID:              uuid.New(),
		ItemID:          itemID,
		AccessToken:     "access-" + itemID,
		InstitutionID:   "ins-1",
		InstitutionName: "First Bank",
		SyncStatus:      status,
	}
	require.NoError(t, db.Create(conn).Error)
	return conn
}

func TestUpdateStatusGuardedApplies(t *testing.T) {
	db := setupItemsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedConnection(t, db, "item-1", enums.ItemSyncStatusActive)

	applied, err := repo.UpdateStatusGuarded(ctx, "item-1",
		[]enums.ItemSyncStatus{enums.ItemSyncStatusActive},
		map[string]any{"sync_status": enums.ItemSyncStatusError})
	require.NoError(t, err)
	assert.True(t, applied)

	conn, err := repo.FindByItemID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, enums.ItemSyncStatusError, conn.SyncStatus)
}

func TestUpdateStatusGuardedRespectsSources(t *testing.T) {
	db := setupItemsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedConnection(t, db, "item-1", enums.ItemSyncStatusDisconnected)

	applied, err := repo.UpdateStatusGuarded(ctx, "item-1",
		[]enums.ItemSyncStatus{enums.ItemSyncStatusActive, enums.ItemSyncStatusError},
		map[string]any{"sync_status": enums.ItemSyncStatusActive})
	require.NoError(t, err)
	assert.False(t, applied)

	conn, err := repo.FindByItemID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, enums.ItemSyncStatusDisconnected, conn.SyncStatus)
}

func TestListExcludesRemoved(t *testing.T) {
	db := setupItemsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedConnection(t, db, "item-1", enums.ItemSyncStatusActive)
	seedConnection(t, db, "item-2", enums.ItemSyncStatusRemoved)

	conns, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "item-1", conns[0].ItemID)
}

func TestListByStatus(t *testing.T) {
	db := setupItemsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedConnection(t, db, "item-1", enums.ItemSyncStatusActive)
	seedConnection(t, db, "item-2", enums.ItemSyncStatusError)
	seedConnection(t, db, "item-3", enums.ItemSyncStatusError)

	conns, err := repo.ListByStatus(ctx, enums.ItemSyncStatusError)
	require.NoError(t, err)
	require.Len(t, conns, 2)
}

func TestTouchWebhookReceived(t *testing.T) {
	db := setupItemsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seedConnection(t, db, "item-1", enums.ItemSyncStatusActive)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.TouchWebhookReceived(ctx, "item-1", at))

	conn, err := repo.FindByItemID(ctx, "item-1")
	require.NoError(t, err)
	require.NotNil(t, conn.WebhookLastReceivedAt)
	assert.WithinDuration(t, at, *conn.WebhookLastReceivedAt, time.Second)
}
