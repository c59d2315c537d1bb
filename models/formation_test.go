package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormation_RowMajorSlots(t *testing.T) {
	f, err := ParseFormation("1-2-3-1")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 1}, f.Rows)
	require.Equal(t, 7, f.SlotCount())

	wantLines := []PositionLine{
		LineGoalkeeper,
		LineDefense, LineDefense,
		LineMidfield, LineMidfield, LineMidfield,
		LineForward,
	}
	for i, line := range wantLines {
		slot, ok := f.Slot(i + 1)
		require.True(t, ok)
		assert.Equal(t, i+1, slot.Index)
		assert.Equal(t, line, slot.Line, "slot %d", i+1)
	}

	gk, _ := f.Slot(1)
	assert.Equal(t, []string{"ARQ"}, gk.Codes)
}

func TestParseFormation_ThreeRowsHasNoMidfield(t *testing.T) {
	f, err := ParseFormation("1-4-2")
	require.NoError(t, err)
	require.Equal(t, 7, f.SlotCount())

	for _, s := range f.Slots {
		assert.NotEqual(t, LineMidfield, s.Line)
	}
	last, _ := f.Slot(7)
	assert.Equal(t, LineForward, last.Line)
}

func TestParseFormation_Invalid(t *testing.T) {
	for _, name := range []string{"", "1-2", "2-2-3", "1-x-3", "1-0-3-1"} {
		_, err := ParseFormation(name)
		assert.ErrorIs(t, err, ErrUnknownFormation, name)
	}
}

func TestFormation_SlotOutOfRange(t *testing.T) {
	f, err := ParseFormation("1-3-3")
	require.NoError(t, err)

	_, ok := f.Slot(0)
	assert.False(t, ok)
	_, ok = f.Slot(8)
	assert.False(t, ok)
}

func TestFormationSlot_AcceptsInterchangeableDefenders(t *testing.T) {
	f, err := ParseFormation("1-3-2-1")
	require.NoError(t, err)

	def, _ := f.Slot(3)
	for _, code := range []string{"DEF", "LD", "li"} {
		assert.True(t, def.Accepts(code), code)
	}
	assert.False(t, def.Accepts("DEL"))
}

func TestDefaultFormationTable(t *testing.T) {
	table := DefaultFormationTable()
	assert.Len(t, table, len(DefaultFormations))

	f, ok := table.Lookup(" 1-2-2-2 ")
	require.True(t, ok)
	assert.Equal(t, 7, f.SlotCount())

	_, ok = table.Lookup("1-1-1-1-1-1-1")
	assert.False(t, ok)
	assert.Equal(t, "1-2-2-2", table.Names()[0])
}
