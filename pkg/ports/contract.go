package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/diagram/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	clientID := "contract-test-client-" + time.Now().Format("20060102150405")

	newSnapshot := func(id string) *domain.Snapshot {
		root := &domain.ModelRoot{
			Element: domain.Element{
				Type: "graph",
				ID:   "root",
				Children: []*domain.Element{
					{Type: "node", ID: "n1", Position: &domain.Point{X: 10, Y: 20}},
				},
			},
			Revision: 3,
		}
		return &domain.Snapshot{
			ClientID: id,
			Options:  map[string]string{"diagramType": "class"},
			Model:    root,
			Revision: 3,
			SavedAt:  time.Now().UTC(),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snapshot := newSnapshot(clientID)

		err := store.Save(ctx, clientID, snapshot)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, clientID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, clientID, loaded.ClientID)
		assert.Equal(t, "class", loaded.Options["diagramType"])
		assert.Equal(t, int64(3), loaded.Revision)
		require.NotNil(t, loaded.Model)
		require.Len(t, loaded.Model.Children, 1)
		assert.Equal(t, "n1", loaded.Model.Children[0].ID)
		assert.Equal(t, 20.0, loaded.Model.Children[0].Position.Y)
	})

	t.Run("Load is isolated from later mutation", func(t *testing.T) {
		snapshot := newSnapshot(clientID)
		require.NoError(t, store.Save(ctx, clientID, snapshot))

		snapshot.Options["diagramType"] = "mutated"
		snapshot.Model.Children[0].ID = "mutated"

		loaded, err := store.Load(ctx, clientID)
		require.NoError(t, err)
		assert.Equal(t, "class", loaded.Options["diagramType"])
		assert.Equal(t, "n1", loaded.Model.Children[0].ID)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+clientID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, clientID, newSnapshot(clientID)))

		err := store.Delete(ctx, clientID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, clientID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := clientID + "-1"
		id2 := clientID + "-2"
		_ = store.Save(ctx, id1, newSnapshot(id1))
		_ = store.Save(ctx, id2, newSnapshot(id2))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		clients, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, clients, id1)
		assert.Contains(t, clients, id2)
	})
}
