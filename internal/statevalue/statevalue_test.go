package statevalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTreeSinglePath(t *testing.T) {
	v := BuildTree([]string{"root.parent.child"})
	assert.Equal(t, map[string]Value{"root": map[string]Value{"parent": "child"}}, v)
}

func TestBuildTreeMergesDisjointRegions(t *testing.T) {
	v := BuildTree([]string{"root.region1.on", "root.region2.static"})
	assert.Equal(t, map[string]Value{
		"root": map[string]Value{
			"region1": "on",
			"region2": "static",
		},
	}, v)
}

func TestPathsRoundTrip(t *testing.T) {
	v := BuildTree([]string{"root.region1.on", "root.region2.static"})
	paths := Paths(v)
	assert.Equal(t, []string{"root.region1.on", "root.region2.static"}, paths)
}

func TestNodeSetIncludesAncestors(t *testing.T) {
	v := BuildTree([]string{"root.parent.child"})
	set := NodeSet(v)
	assert.True(t, set["root"])
	assert.True(t, set["root.parent"])
	assert.True(t, set["root.parent.child"])
	assert.False(t, set["root.parent.child.grandchild"])
}

func TestGetAt(t *testing.T) {
	v := BuildTree([]string{"root.parent.child"})
	got, ok := GetAt(v, "root.parent")
	require.True(t, ok)
	assert.Equal(t, "child", got)

	_, ok = GetAt(v, "root.missing")
	assert.False(t, ok)
}

func TestSpliceAtLCACompoundReplacesWholesale(t *testing.T) {
	old := BuildTree([]string{"root.parent.oldChild"})
	next := SpliceAtLCA(old, "root.parent", false, []string{"root.parent.newChild.grandchild"})
	assert.Equal(t, map[string]Value{
		"root": map[string]Value{
			"parent": map[string]Value{"newChild": "grandchild"},
		},
	}, next)
}

func TestSpliceAtLCAParallelPreservesSiblingRegions(t *testing.T) {
	old := BuildTree([]string{"root.region1.on", "root.region2.static"})
	next := SpliceAtLCA(old, "root", true, []string{"root.region1.off"})
	assert.Equal(t, []string{"root.region1.off", "root.region2.static"}, Paths(next))
}

func TestShallowChildName(t *testing.T) {
	name, ok := ShallowChildName("leafName")
	require.True(t, ok)
	assert.Equal(t, "leafName", name)

	name, ok = ShallowChildName(map[string]Value{"compoundChild": "grandchild"})
	require.True(t, ok)
	assert.Equal(t, "compoundChild", name)
}

func TestMatchStringQuery(t *testing.T) {
	v := BuildTree([]string{"root.parent.child"})
	assert.True(t, Match(v, "root.parent"))
	assert.True(t, Match(v, "root.parent.child"))
	assert.False(t, Match(v, "root.other"))
}

func TestMatchNestedQuery(t *testing.T) {
	v := BuildTree([]string{"root.region1.on", "root.region2.static"})
	assert.True(t, Match(v, map[string]any{"root": map[string]any{"region1": "on"}}))
	assert.False(t, Match(v, map[string]any{"root": map[string]any{"region1": "off"}}))
}

func TestCloneValueIsIndependent(t *testing.T) {
	v := BuildTree([]string{"root.parent.child"}).(map[string]Value)
	clone := CloneValue(v).(map[string]Value)
	clone["root"] = "mutated"
	assert.Equal(t, "child", mustGet(t, v, "root.parent"))
}

func mustGet(t *testing.T, v Value, path string) Value {
	t.Helper()
	got, ok := GetAt(v, path)
	require.True(t, ok)
	return got
}
