package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
)

type doorState string
type doorAction string

func doorTable() *Table[doorState, doorAction] {
	return New("door",
		Transition[doorState, doorAction]{From: []doorState{"closed"}, Action: "open", To: "open"},
		Transition[doorState, doorAction]{From: []doorState{"open"}, Action: "close", To: "closed"},
		Transition[doorState, doorAction]{From: []doorState{"open", "closed"}, Action: "break", To: "broken"},
	)
}

func TestNextFollowsEdges(t *testing.T) {
	table := doorTable()

	next, err := table.Next("closed", "open")
	require.NoError(t, err)
	assert.Equal(t, doorState("open"), next)

	next, err = table.Next("open", "break")
	require.NoError(t, err)
	assert.Equal(t, doorState("broken"), next)
}

func TestNextRejectsIllegalMove(t *testing.T) {
	table := doorTable()

	_, err := table.Next("broken", "open")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInvalidTransition, typed.Code())
	assert.Equal(t, map[string]any{"entity": "door", "current": "broken", "action": "open"}, typed.Details())
}

func TestActionsAndCan(t *testing.T) {
	table := doorTable()
	assert.Equal(t, []doorAction{"break", "open"}, table.Actions("closed"))
	assert.Empty(t, table.Actions("broken"))
	assert.True(t, table.Can("open", "close"))
	assert.False(t, table.Can("closed", "close"))
}

func TestNewPanicsOnDuplicateEdge(t *testing.T) {
	assert.Panics(t, func() {
		New("door",
			Transition[doorState, doorAction]{From: []doorState{"closed"}, Action: "open", To: "open"},
			Transition[doorState, doorAction]{From: []doorState{"closed"}, Action: "open", To: "broken"},
		)
	})
}
