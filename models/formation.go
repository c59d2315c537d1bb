package models

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var ErrUnknownFormation = errors.New("unknown formation")

// PositionLine groups formation rows.
type PositionLine string

const (
	LineGoalkeeper PositionLine = "goalkeeper"
	LineDefense    PositionLine = "defense"
	LineMidfield   PositionLine = "midfield"
	LineForward    PositionLine = "forward"
)

var lineCodes = map[PositionLine][]string{
	LineGoalkeeper: {"ARQ"},
	LineDefense:    {"DEF", "LD", "LI"},
	LineMidfield:   {"MED", "VOL"},
	LineForward:    {"DEL"},
}

// FormationSlot is one 1-based position within a formation.
type FormationSlot struct {
	Index int          `json:"index"`
	Row   int          `json:"row"`
	Line  PositionLine `json:"line"`
	Codes []string     `json:"codes"`
}

// Accepts reports whether a player with the given position code fits the
// slot. It is used to filter candidates, never to reject an assignment.
func (s FormationSlot) Accepts(code string) bool {
	return slices.Contains(s.Codes, strings.ToUpper(strings.TrimSpace(code)))
}

type Formation struct {
	Name  string          `json:"name"`
	Rows  []int           `json:"rows"`
	Slots []FormationSlot `json:"slots"`
}

func (f Formation) SlotCount() int {
	return len(f.Slots)
}

// Slot returns the slot with the given 1-based index.
func (f Formation) Slot(index int) (FormationSlot, bool) {
	if index < 1 || index > len(f.Slots) {
		return FormationSlot{}, false
	}
	return f.Slots[index-1], true
}

// ParseFormation builds a formation from a name such as "1-2-3-1". Slots are
// numbered row-major starting at 1; the first row is the goalkeeper, the
// second defense, the last forward and anything in between midfield.
func ParseFormation(name string) (Formation, error) {
	parts := strings.Split(strings.TrimSpace(name), "-")
	if len(parts) < 3 {
		return Formation{}, fmt.Errorf("%w: %q", ErrUnknownFormation, name)
	}

	rows := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return Formation{}, fmt.Errorf("%w: %q", ErrUnknownFormation, name)
		}
		rows = append(rows, n)
	}
	if rows[0] != 1 {
		return Formation{}, fmt.Errorf("%w: %q must start with a single goalkeeper", ErrUnknownFormation, name)
	}

	f := Formation{Name: strings.Join(parts, "-"), Rows: rows}
	index := 1
	for r, size := range rows {
		line := rowLine(r, len(rows))
		for i := 0; i < size; i++ {
			f.Slots = append(f.Slots, FormationSlot{
				Index: index,
				Row:   r + 1,
				Line:  line,
				Codes: lineCodes[line],
			})
			index++
		}
	}
	return f, nil
}

func rowLine(row, total int) PositionLine {
	switch {
	case row == 0:
		return LineGoalkeeper
	case row == 1:
		return LineDefense
	case row == total-1:
		return LineForward
	default:
		return LineMidfield
	}
}

// FormationTable is the set of formations a dream team may use.
type FormationTable map[string]Formation

// DefaultFormations lists the seven-a-side formations offered by the league.
var DefaultFormations = []string{"1-2-3-1", "1-3-2-1", "1-2-2-2", "1-3-3", "1-4-2", "1-2-4"}

// NewFormationTable parses names into a table. It fails on the first
// malformed name.
func NewFormationTable(names ...string) (FormationTable, error) {
	t := make(FormationTable, len(names))
	for _, n := range names {
		f, err := ParseFormation(n)
		if err != nil {
			return nil, err
		}
		t[f.Name] = f
	}
	return t, nil
}

// DefaultFormationTable returns the table built from DefaultFormations.
func DefaultFormationTable() FormationTable {
	t, err := NewFormationTable(DefaultFormations...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t FormationTable) Lookup(name string) (Formation, bool) {
	f, ok := t[strings.TrimSpace(name)]
	return f, ok
}

// Names returns formation names in a stable order.
func (t FormationTable) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
