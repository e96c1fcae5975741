package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPath(t *testing.T) {
	eng := openTestEngine(t, t.TempDir())
	defer eng.Close()
	site, roomA, roomB, rack := buildTree(t, eng)

	res, err := eng.FindPath(PathQuery{Source: site, Target: rack})
	require.NoError(t, err)
	assert.Equal(t, []uint64{site, roomA, rack}, res.Nodes)
	require.Len(t, res.Edges, 2)
	first, err := eng.GetEdge(res.Edges[0])
	require.NoError(t, err)
	assert.Equal(t, roomA, first.Target)

	// edges are directed
	_, err = eng.FindPath(PathQuery{Source: rack, Target: site})
	assert.ErrorIs(t, err, ErrNoPath)
	_, err = eng.FindPath(PathQuery{Source: roomA, Target: roomB})
	assert.ErrorIs(t, err, ErrNoPath)

	_, err = eng.FindPath(PathQuery{Source: site, Target: rack, MaxDepth: 1})
	assert.ErrorIs(t, err, ErrNoPath)
	_, err = eng.FindPath(PathQuery{Source: site, Target: rack, Relations: []string{"located in"}})
	assert.ErrorIs(t, err, ErrNoPath)

	res, err = eng.FindPath(PathQuery{Source: roomB, Target: roomB})
	require.NoError(t, err)
	assert.Equal(t, []uint64{roomB}, res.Nodes)
	assert.Empty(t, res.Edges)

	_, err = eng.FindPath(PathQuery{Source: site, Target: 404})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestFindPathPrefersShortcut(t *testing.T) {
	eng := openTestEngine(t, t.TempDir())
	defer eng.Close()

	ids := make([]uint64, 6)
	for i := range ids {
		ids[i], _ = eng.AddNode(nil, nil)
	}
	// long chain 0->1->2->3->4->5 plus shortcut 1->4
	for i := 0; i < 5; i++ {
		_, err := eng.AddEdge(ids[i], ids[i+1], "next", nil)
		require.NoError(t, err)
	}
	_, err := eng.AddEdge(ids[1], ids[4], "jump", nil)
	require.NoError(t, err)

	res, err := eng.FindPath(PathQuery{Source: ids[0], Target: ids[5]})
	require.NoError(t, err)
	assert.Equal(t, []uint64{ids[0], ids[1], ids[4], ids[5]}, res.Nodes)
	assert.Len(t, res.Edges, 3)

	res, err = eng.FindPath(PathQuery{Source: ids[0], Target: ids[5], Relations: []string{"next"}})
	require.NoError(t, err)
	assert.Equal(t, ids, res.Nodes)

	view := eng.Snapshot()
	res, err = view.FindPath(PathQuery{Source: ids[2], Target: ids[4]})
	require.NoError(t, err)
	assert.Equal(t, []uint64{ids[2], ids[3], ids[4]}, res.Nodes)
}
