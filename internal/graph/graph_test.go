package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluginsort/core/internal/metadata"
	"github.com/pluginsort/core/internal/pluginfile"
)

func recordID(file string, local uint32) pluginfile.RecordID {
	return pluginfile.RecordID{DefiningFile: file, LocalID: local}
}

func TestBuildOrdersMastersBeforeDependents(t *testing.T) {
	nodes := []PluginNode{
		{Name: "Skyrim.esm", IsMaster: true},
		{Name: "Dawnguard.esm", IsMaster: true, Masters: []string{"Skyrim.esm"}},
		{Name: "ModA.esp", Masters: []string{"Skyrim.esm"}},
		{Name: "ModB.esp", Masters: []string{"Skyrim.esm", "Dawnguard.esm"}},
	}
	loadOrder := []string{"Skyrim.esm", "Dawnguard.esm", "ModA.esp", "ModB.esp"}

	result, err := Build(nodes, loadOrder)
	require.NoError(t, err)
	require.Len(t, result.Order, 4)

	pos := indexOf(result.Order)
	assert.Less(t, pos["Skyrim.esm"], pos["Dawnguard.esm"])
	assert.Less(t, pos["Skyrim.esm"], pos["ModA.esp"])
	assert.Less(t, pos["Dawnguard.esm"], pos["ModB.esp"])
	assert.Less(t, pos["ModA.esp"], pos["ModB.esp"], "tie-break pass should order ModA before ModB by load order position")
}

func TestBuildDetectsHardEdgeCycle(t *testing.T) {
	nodes := []PluginNode{
		{Name: "A.esp", Effective: metadata.PluginMetadata{LoadAfter: []metadata.File{{Name: "B.esp"}}}},
		{Name: "B.esp", Effective: metadata.PluginMetadata{LoadAfter: []metadata.File{{Name: "A.esp"}}}},
	}
	_, err := Build(nodes, []string{"A.esp", "B.esp"})
	require.Error(t, err)
}

func TestPriorityInheritanceRaisesDependentPriority(t *testing.T) {
	nodes := []PluginNode{
		{Name: "Master.esp", Effective: metadata.PluginMetadata{LocalPriority: metadata.Priority{Value: 50, Explicit: true}}},
		{Name: "Dependent.esp", Masters: []string{"Master.esp"}},
	}
	result, err := Build(nodes, []string{"Master.esp", "Dependent.esp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Master.esp", "Dependent.esp"}, result.Order)
	assert.Equal(t, int8(50), nodes[1].Effective.LocalPriority.Value)
	assert.True(t, nodes[1].Effective.LocalPriority.Explicit)
}

func TestPriorityInheritanceIgnoresMasterFlagSeparationEdges(t *testing.T) {
	nodes := []PluginNode{
		{Name: "Master.esm", IsMaster: true, Effective: metadata.PluginMetadata{LocalPriority: metadata.Priority{Value: 50, Explicit: true}}},
		{Name: "Unrelated.esp"},
	}
	_, err := Build(nodes, []string{"Master.esm", "Unrelated.esp"})
	require.NoError(t, err)
	assert.Equal(t, int8(0), nodes[1].Effective.LocalPriority.Value, "a non-master should not inherit priority from a master it never references")
	assert.False(t, nodes[1].Effective.LocalPriority.Explicit)
}

func TestPriorityInheritanceIgnoresNonPositiveParent(t *testing.T) {
	nodes := []PluginNode{
		{Name: "Master.esp", Effective: metadata.PluginMetadata{LocalPriority: metadata.Priority{Value: -20, Explicit: true}}},
		{Name: "Dependent.esp", Masters: []string{"Master.esp"}, Effective: metadata.PluginMetadata{LocalPriority: metadata.Priority{Value: -5, Explicit: true}}},
	}
	_, err := Build(nodes, []string{"Master.esp", "Dependent.esp"})
	require.NoError(t, err)
	assert.Equal(t, int8(-5), nodes[1].Effective.LocalPriority.Value, "a non-positive parent priority must never override the dependent's own value")
}

func TestPriorityEdgesOrderConflictingOverlap(t *testing.T) {
	nodes := []PluginNode{
		{
			Name:      "Low.esp",
			RecordIDs: map[pluginfile.RecordID]struct{}{recordID("Skyrim.esm", 1): {}},
			Effective: metadata.PluginMetadata{LocalPriority: metadata.Priority{Value: -10, Explicit: true}},
		},
		{
			Name:      "High.esp",
			RecordIDs: map[pluginfile.RecordID]struct{}{recordID("Skyrim.esm", 1): {}},
			Effective: metadata.PluginMetadata{LocalPriority: metadata.Priority{Value: 10, Explicit: true}},
		},
	}
	result, err := Build(nodes, []string{"High.esp", "Low.esp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Low.esp", "High.esp"}, result.Order)
}

func TestOverlapEdgesOrderByOverrideCount(t *testing.T) {
	nodes := []PluginNode{
		{
			Name:                "Few.esp",
			RecordIDs:           map[pluginfile.RecordID]struct{}{recordID("Skyrim.esm", 1): {}},
			OverrideRecordCount: 2,
		},
		{
			Name:                "Many.esp",
			RecordIDs:           map[pluginfile.RecordID]struct{}{recordID("Skyrim.esm", 1): {}},
			OverrideRecordCount: 20,
		},
	}
	result, err := Build(nodes, []string{"Few.esp", "Many.esp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Many.esp", "Few.esp"}, result.Order, "plugin overriding more records should load first")
}

func TestTieBreakFallsBackToLoadOrderPosition(t *testing.T) {
	nodes := []PluginNode{
		{Name: "Z.esp"},
		{Name: "A.esp"},
	}
	result, err := Build(nodes, []string{"Z.esp", "A.esp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Z.esp", "A.esp"}, result.Order)
}

func TestCheckHamiltonicityWarnsOnGap(t *testing.T) {
	g := New([]string{"A", "B", "C"})
	g.AddEdge(0, 1)
	warnings := g.CheckHamiltonicity([]string{"A", "B", "C"})
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "B")
	assert.Contains(t, warnings[0], "C")
}

func TestDetectCycleReturnsNilForAcyclicGraph(t *testing.T) {
	g := New([]string{"A", "B"})
	g.AddEdge(0, 1)
	assert.Nil(t, g.DetectCycle())
}

func TestWouldCreateCycle(t *testing.T) {
	g := New([]string{"A", "B", "C"})
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	assert.True(t, g.WouldCreateCycle(2, 0))
	assert.False(t, g.WouldCreateCycle(0, 2))
}

func indexOf(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	return pos
}
