package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/guestcall/domain/entities"
)

const labyrinth = `
name: labyrinth
version: 0.1.0
description: hero movement
shapes:
  Position:
    fields:
      - {name: x, shape: u32}
      - {name: y, shape: u32}
  Direction:
    variants: [North, East, South, West]
operations:
  - name: step
    params:
      - name: from
        shape: Position
      - name: toward
        shape: Direction
    result: option<Position>
  - name: reset
`

func TestYamlInterfaceParser_Parse(t *testing.T) {
	iface, err := NewYamlInterfaceParser().Parse([]byte(labyrinth))
	require.NoError(t, err)

	assert.Equal(t, "labyrinth", iface.Name)
	assert.Equal(t, "0.1.0", iface.Version)
	require.Len(t, iface.Operations, 2)

	step := iface.Operations[0]
	assert.Equal(t, "step", step.Name)
	assert.Equal(t, []entities.Parameter{
		{Name: "from", Shape: "Position"},
		{Name: "toward", Shape: "Direction"},
	}, step.Params)
	assert.Equal(t, "option<Position>", step.ResultShape())
	assert.True(t, step.HasResult())

	reset := iface.Operations[1]
	assert.Empty(t, reset.Params)
	assert.Equal(t, entities.UnitShape, reset.ResultShape())
	assert.False(t, reset.HasResult())

	require.Contains(t, iface.Shapes, "Position")
	assert.True(t, iface.Shapes["Position"].IsRecord())
	assert.Equal(t, "y", iface.Shapes["Position"].Fields[1].Name)
	assert.True(t, iface.Shapes["Direction"].IsEnum())
}

func TestYamlInterfaceParser_JSON(t *testing.T) {
	doc := `{"name": "calc", "operations": [{"name": "add", "params": [{"name": "a", "shape": "i32"}], "result": "i32"}]}`

	iface, err := NewYamlInterfaceParser().Parse([]byte(doc))
	require.NoError(t, err)
	op, ok := iface.Operation("add")
	require.True(t, ok)
	assert.Equal(t, "i32", op.Result)
	assert.Equal(t, []string{"add"}, iface.OperationNames())
}

func TestYamlInterfaceParser_UnknownFields(t *testing.T) {
	doc := `
name: calc
operations:
  - name: add
    parmas: []
`
	_, err := NewYamlInterfaceParser().Parse([]byte(doc))
	assert.Error(t, err)

	iface, err := NewYamlInterfaceParser(WithKnownFields(false)).Parse([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, iface.Operations[0].Params)
}

func TestYamlInterfaceParser_Errors(t *testing.T) {
	_, err := NewYamlInterfaceParser().Parse([]byte("  \n"))
	assert.Error(t, err)

	_, err = NewYamlInterfaceParser().Parse([]byte("name: [unclosed"))
	assert.Error(t, err)
}
