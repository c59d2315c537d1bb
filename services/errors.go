package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by the rule core. Every failure a caller can act on is
// one of these; use errors.Is to compare.
var (
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrUnauthorized            = errors.New("actor is not allowed to perform this action")
	ErrDuplicatePendingRequest = errors.New("a pending request already exists")

	ErrCaptainLimitExceeded = errors.New("team already has the maximum number of active captains")
	ErrDuplicateMembership  = errors.New("player already holds an active membership on this team")
	ErrCategoryClosed       = errors.New("category-edition is not accepting new members")

	ErrSlotOccupied            = errors.New("slot is already occupied")
	ErrPublishedImmutable      = errors.New("dream team is published and can no longer change")
	ErrInvalidSlotForFormation = errors.New("slot is not valid for the formation")
	ErrNotFound                = errors.New("requested resource not found")

	ErrValidationFailed    = errors.New("validation failed")
	ErrPlayerAlreadyPlaced = errors.New("player is already placed in the dream team for this match")
	ErrConflict            = errors.New("resource already exists")
)

var kindNames = []struct {
	err  error
	name string
}{
	{ErrInvalidStateTransition, "InvalidStateTransition"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrDuplicatePendingRequest, "DuplicatePendingRequest"},
	{ErrCaptainLimitExceeded, "CaptainLimitExceeded"},
	{ErrDuplicateMembership, "DuplicateMembership"},
	{ErrCategoryClosed, "CategoryClosed"},
	{ErrSlotOccupied, "SlotOccupied"},
	{ErrPublishedImmutable, "PublishedImmutable"},
	{ErrInvalidSlotForFormation, "InvalidSlotForFormation"},
	{ErrNotFound, "NotFound"},
	{ErrValidationFailed, "ValidationFailed"},
	{ErrPlayerAlreadyPlaced, "PlayerAlreadyPlaced"},
	{ErrConflict, "Conflict"},
}

// KindName returns the stable name of the kind err belongs to.
func KindName(err error) (string, bool) {
	for _, k := range kindNames {
		if errors.Is(err, k.err) {
			return k.name, true
		}
	}
	return "", false
}

// RuleError is a rule-core failure with the ids needed to render it.
// Zero ids are omitted from Context.
type RuleError struct {
	Kind              error
	RequestID         int
	PlayerID          int
	TeamID            int
	CategoryEditionID int
	DreamTeamID       int
	Slot              int
	Detail            string
}

func (e *RuleError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	for _, kv := range e.pairs() {
		fmt.Fprintf(&b, " %s=%d", kv.key, kv.val)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *RuleError) Unwrap() error {
	return e.Kind
}

type idPair struct {
	key string
	val int
}

func (e *RuleError) pairs() []idPair {
	all := []idPair{
		{"request_id", e.RequestID},
		{"player_id", e.PlayerID},
		{"team_id", e.TeamID},
		{"category_edition_id", e.CategoryEditionID},
		{"dreamteam_id", e.DreamTeamID},
		{"slot", e.Slot},
	}
	out := all[:0]
	for _, p := range all {
		if p.val != 0 {
			out = append(out, p)
		}
	}
	return out
}

// Context returns the non-zero ids keyed by their JSON names.
func (e *RuleError) Context() map[string]int {
	ctx := make(map[string]int)
	for _, p := range e.pairs() {
		ctx[p.key] = p.val
	}
	return ctx
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if name, ok := KindName(err); ok {
		return name
	}
	return "error"
}
