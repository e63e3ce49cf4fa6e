package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"eve.evalgo.org/adapter"
	"eve.evalgo.org/provider"
	"eve.evalgo.org/schema"
)

func TestStripEnvelopeRemovesIDAndType(t *testing.T) {
	rec := map[string]any{"$id": "t1", "$type": "Task", "title": "a"}
	data := stripEnvelope(rec)
	require.Equal(t, map[string]any{"title": "a"}, data)
}

func TestSnapshotRoundTripThroughBolt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.db")
	backing, err := adapter.OpenBoltStore(path)
	require.NoError(t, err)
	defer backing.Close()

	s := schema.NewSchema()
	s.EntityOrder = []string{"Task"}

	p := provider.New(s)
	_, err = p.Create(ctx, "Task", "t1", map[string]any{"title": "write tests"})
	require.NoError(t, err)

	require.NoError(t, saveSnapshot(ctx, p, backing))

	restored := provider.New(s)
	require.NoError(t, loadSnapshot(ctx, restored, backing))

	rec := restored.Get("Task", "t1")
	require.NotNil(t, rec)
	require.Equal(t, "write tests", rec["title"])
}

func TestOpenBackingMemoryReturnsNil(t *testing.T) {
	backing, err := openBacking(context.Background(), StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	require.Nil(t, backing)
}

func TestOpenBackingUnknownErrors(t *testing.T) {
	_, err := openBacking(context.Background(), StoreConfig{Backend: "bogus"})
	require.Error(t, err)
}
