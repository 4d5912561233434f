package pathfilter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panzi/u4pak/internal/pathfilter"
)

func TestContainsMatchesPrefixAndDescendants(t *testing.T) {
	f := pathfilter.New("Content/Textures")
	require.True(t, f.Contains("Content/Textures"))
	require.True(t, f.Contains("Content/Textures/wall.uasset"))
	require.False(t, f.Contains("Content/Sounds/beep.wav"))
}

func TestContainsEmpty(t *testing.T) {
	f := pathfilter.New()
	require.False(t, f.Contains("anything"))
}

func TestContainsIgnoresSlashNoise(t *testing.T) {
	f := pathfilter.New("/Content//Textures/")
	require.True(t, f.Contains("Content/Textures/wall.uasset"))
}

func TestVisitAndNonVisitedPaths(t *testing.T) {
	f := pathfilter.New("Content/Textures", "Content/Sounds")
	require.True(t, f.Visit("Content/Textures/wall.uasset"))
	require.False(t, f.Visit("Content/Meshes/cube.uasset"))

	missing := f.NonVisitedPaths()
	require.ElementsMatch(t, []string{"Content/Sounds"}, missing)
}

func TestVisitMarksOnlyMatchingAncestor(t *testing.T) {
	f := pathfilter.New("a", "a/b/c")
	// "a" already includes everything beneath it, and Visit stops at the
	// first included ancestor, so "a" is marked visited and the walk never
	// reaches the "a/b/c" node. That distinct insertion therefore still
	// shows up as non-visited.
	f.Visit("a/b/x")
	missing := f.NonVisitedPaths()
	require.Contains(t, missing, "a/b/c")
}
