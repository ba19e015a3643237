package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/weave/internal/limits"
)

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("ui")
	assert.Len(t, g.nodes, 1)
	n, ok := g.nodes["ui"]
	require.True(t, ok)
	assert.Equal(t, "ui", n.id)
	assert.NotNil(t, n.deps)
	assert.NotNil(t, n.dependents)

	g.AddNode("ui") // idempotent
	assert.Len(t, g.nodes, 1)

	g.AddNode("charts")
	assert.Equal(t, []string{"charts", "ui"}, g.Nodes())
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("core")
		g.AddNode("ui")

		require.NoError(t, g.AddEdge("core", "ui")) // ui depends on core

		deps, err := g.Dependencies("ui")
		require.NoError(t, err)
		assert.Equal(t, []string{"core"}, deps)

		dependents, err := g.Dependents("core")
		require.NoError(t, err)
		assert.Equal(t, []string{"ui"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")

		assert.ErrorContains(t, g.AddEdge("dne", "a"), "source node not found")
		assert.ErrorContains(t, g.AddEdge("a", "dne"), "destination node not found")
		assert.ErrorContains(t, g.AddEdge("a", "a"), "self-referential edge")

		_, err := g.Dependencies("dne")
		assert.Error(t, err)
	})
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		assert.NoError(t, New().DetectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c")) // transitive edge
		require.NoError(t, g.AddEdge("c", "d"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("cycle carries the full path", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "c"} {
			g.AddNode(id)
		}
		// a depends on c, c on b, b on a.
		require.NoError(t, g.AddEdge("c", "a"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "b"))

		err := g.DetectCycles()
		require.Error(t, err)
		assert.ErrorContains(t, err, "cycle detected")

		var cycleErr *limits.CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, limits.DomainPackage, cycleErr.Domain)
		assert.Equal(t, "a", cycleErr.Key)
		assert.Equal(t, []string{"a", "c", "b", "a"}, cycleErr.Path)
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))

		g.AddNode("x")
		g.AddNode("y")
		g.AddNode("z")
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "z"))
		require.NoError(t, g.AddEdge("z", "y"))

		assert.ErrorContains(t, g.DetectCycles(), "cycle detected")
	})
}

func TestTopologicalOrder(t *testing.T) {
	t.Run("dependencies come first", func(t *testing.T) {
		g := New()
		for _, id := range []string{"app", "charts", "core", "ui"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("core", "ui"))
		require.NoError(t, g.AddEdge("core", "charts"))
		require.NoError(t, g.AddEdge("ui", "app"))
		require.NoError(t, g.AddEdge("charts", "app"))

		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"core", "charts", "ui", "app"}, order)
	})

	t.Run("cyclic graph has no order", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))

		order, err := g.TopologicalOrder()
		assert.Nil(t, order)
		var cycleErr *limits.CycleError
		assert.True(t, errors.As(err, &cycleErr))
	})
}
