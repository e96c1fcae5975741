package loader

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sanonone/kektormatch/internal/protocol"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openEngine(t *testing.T) *engine.Engine {
	t.Helper()
	opts := engine.DefaultOptions(t.TempDir())
	opts.AutoSaveInterval = 0
	opts.AofRewritePercentage = 0
	opts.MaintenanceInterval = time.Hour
	eng, err := engine.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

const siteScript = `
# two rooms under one site
NODE 1 :Site name=hq
NODE 2 :Room name="server room"
NODE 3 :Room name=office
EDGE 1 2 "has child"
EDGE 1 3 "has child" order=2
`

func TestImportScript(t *testing.T) {
	eng := openEngine(t)

	stats, err := ImportScript(context.Background(), strings.NewReader(siteScript), eng)
	require.NoError(t, err)
	assert.Equal(t, Stats{Nodes: 3, Edges: 2}, stats)

	n, err := eng.GetNode(2)
	require.NoError(t, err)
	assert.Equal(t, "server room", n.Properties["name"])
	assert.Equal(t, []uint64{2, 3}, eng.NodesByLabel("Room"))

	ids, err := eng.Traverse(engine.GraphQuery{RootID: 1, Relations: []string{engine.RelHasChild}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	// imported ids advance the sequence
	next, err := eng.AddNode(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), next)
}

func TestImportScriptStopsAtBadLine(t *testing.T) {
	eng := openEngine(t)

	stats, err := ImportScript(context.Background(), strings.NewReader("NODE 1\nNODE 2 oops\nNODE 3\n"), eng)
	assert.ErrorIs(t, err, protocol.ErrSyntax)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 1, stats.Nodes)

	_, err = ImportScript(context.Background(), strings.NewReader("EDGE 1 9 rel\n"), eng)
	assert.ErrorIs(t, err, engine.ErrNodeNotFound)
}

func TestImportScriptCanceled(t *testing.T) {
	eng := openEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ImportScript(ctx, strings.NewReader(siteScript), eng)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, eng.NodeCount())
}

const sesCSV = `Name,Parent,Description
Equipment,,Anything installed
Cooling,Equipment,Keeps things cold
Chiller,Cooling,"Water chiller, large"
Sensor,Instrument,
`

func TestImportCSV(t *testing.T) {
	eng := openEngine(t)
	cfg := DefaultCSVConfig()

	stats, err := ImportCSV(context.Background(), strings.NewReader(sesCSV), eng, cfg)
	require.NoError(t, err)
	// Instrument only appears as a parent
	assert.Equal(t, Stats{Nodes: 5, Edges: 3}, stats)

	byName := map[string]uint64{}
	for _, id := range eng.NodesByLabel(cfg.Label) {
		n, err := eng.GetNode(id)
		require.NoError(t, err)
		byName[n.Properties[cfg.KeyProperty]] = id
	}
	require.Len(t, byName, 5)

	chiller, err := eng.GetNode(byName["Chiller"])
	require.NoError(t, err)
	assert.Equal(t, "Water chiller, large", chiller.Properties["description"])

	out, err := eng.Outgoing(byName["Chiller"])
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, engine.RelSubcategoryOf, out[0].Type)
	assert.Equal(t, byName["Cooling"], out[0].Target)

	// a second import reuses the existing classes
	stats, err = ImportCSV(context.Background(), strings.NewReader("Name,Parent,Description\nPump,Cooling,moves water\n"), eng, cfg)
	require.NoError(t, err)
	assert.Equal(t, Stats{Nodes: 1, Edges: 1}, stats)
	assert.Len(t, eng.NodesByLabel(cfg.Label), 6)
}

func TestImportCSVMissingColumn(t *testing.T) {
	eng := openEngine(t)
	_, err := ImportCSV(context.Background(), strings.NewReader("Name,Description\nA,b\n"), eng, DefaultCSVConfig())
	assert.ErrorIs(t, err, ErrMissingColumn)
}
