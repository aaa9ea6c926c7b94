package query

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDoesNotShareState(t *testing.T) {
	likes := graph.MustIdentifier("likes")
	base := Vertices(uuid.New()).Outbound(&likes)
	a := base.Endpoint(graph.Inbound)
	b := base.Limit(3)

	require.Len(t, base.Pipes, 1)
	require.Len(t, a.Pipes, 2)
	require.Len(t, b.Pipes, 2)
	assert.IsType(t, Endpoints{}, a.Pipes[1])
	assert.IsType(t, Limit{}, b.Pipes[1])
}

func TestOutput(t *testing.T) {
	assert.Equal(t, VertexOutput, AllVerticesQuery().Output())
	assert.Equal(t, EdgeOutput, AllVerticesQuery().Outbound(nil).Output())
	assert.Equal(t, VertexOutput, AllVerticesQuery().Outbound(nil).Endpoint(graph.Inbound).Output())
	assert.Equal(t, EdgeOutput, AllEdgesQuery().WithProperty(graph.MustIdentifier("w")).Output())
}

func TestValidate(t *testing.T) {
	name := graph.MustIdentifier("name")
	now := time.Now()
	earlier := now.Add(-time.Hour)
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	valid := []Query{
		AllVerticesQuery(),
		Vertices(),
		VerticesBetween(low, high),
		VerticesBetween(low, low),
		AllVerticesQuery().Outbound(nil).Endpoint(graph.Inbound).Offset(2).Limit(1),
		AllEdgesQuery().WherePropertyEquals(name, graph.MustValue("x")).Endpoint(graph.Outbound),
		From(VerticesWherePropertyEquals{Name: name, Value: graph.MustValue(1)}),
		AllVerticesQuery().Pipe(EdgesOf{Direction: graph.Inbound, High: &now, Low: &earlier}),
		AllVerticesQuery().Limit(0),
	}
	for i, q := range valid {
		assert.NoError(t, q.Validate(), "query %d", i)
	}

	invalid := []Query{
		{},
		AllEdgesQuery().Outbound(nil),
		AllVerticesQuery().Endpoint(graph.Outbound),
		AllVerticesQuery().Limit(1).Offset(1),
		AllVerticesQuery().Limit(-1),
		AllVerticesQuery().Offset(-1),
		VerticesBetween(high, low),
		AllVerticesQuery().WithProperty(graph.Identifier{}),
		AllVerticesQuery().WherePropertyEquals(name, nil),
		From(VerticesWithProperty{}),
		Edges(graph.EdgeKey{OutboundID: low, InboundID: high}),
		AllVerticesQuery().Pipe(EdgesOf{High: &earlier, Low: &now}),
		AllVerticesQuery().Pipe(nil),
	}
	for i, q := range invalid {
		var qerr *graph.QueryError
		assert.ErrorAs(t, q.Validate(), &qerr, "query %d", i)
	}
}

func TestExpect(t *testing.T) {
	assert.NoError(t, AllEdgesQuery().Expect(EdgeOutput))

	var qerr *graph.QueryError
	assert.ErrorAs(t, AllEdgesQuery().Expect(VertexOutput), &qerr)
	assert.ErrorAs(t, AllVerticesQuery().Outbound(nil).Expect(VertexOutput), &qerr)
}
