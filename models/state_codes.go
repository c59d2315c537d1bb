package models

import "fmt"

// Short state codes stored in the database and accepted as query filters.
// This file is the only place where codes are translated to states.

var requestStateCodes = map[RequestState]string{
	RequestPending:   "E",
	RequestAccepted:  "A",
	RequestRejected:  "R",
	RequestCancelled: "C",
}

var leaveStateCodes = map[LeaveState]string{
	LeavePending:  "P",
	LeaveApproved: "A",
	LeaveRejected: "R",
}

// Code returns the single-letter code of s.
func (s RequestState) Code() string {
	return requestStateCodes[s]
}

// ParseRequestStateCode accepts a code ("E", "A", "R", "C") or a full state
// name. "P" is accepted as a legacy alias for pending.
func ParseRequestStateCode(code string) (RequestState, error) {
	if code == "P" {
		return RequestPending, nil
	}
	for state, c := range requestStateCodes {
		if c == code || string(state) == code {
			return state, nil
		}
	}
	return "", fmt.Errorf("unknown request state code %q", code)
}

func (s LeaveState) Code() string {
	return leaveStateCodes[s]
}

func ParseLeaveStateCode(code string) (LeaveState, error) {
	for state, c := range leaveStateCodes {
		if c == code || string(state) == code {
			return state, nil
		}
	}
	return "", fmt.Errorf("unknown leave state code %q", code)
}
