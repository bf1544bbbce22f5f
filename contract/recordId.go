// Package contract holds the engine-side records of a contract editing session.
package contract

import (
	"fmt"
	"strconv"
)

// RecordID identifies an item or allocation. It is either a draft id, generated
// locally and never sent to the backend, or a persisted id issued by the backend.
// The zero value is invalid. RecordID is comparable and used as a map key.
type RecordID struct {
	persisted bool
	value     int
}

func Draft(seq int) RecordID {
	return RecordID{value: seq}
}

func Persisted(id int) RecordID {
	return RecordID{persisted: true, value: id}
}

func (id RecordID) IsZero() bool { return id.value == 0 }

func (id RecordID) IsDraft() bool { return !id.persisted && id.value != 0 }

func (id RecordID) IsPersisted() bool { return id.persisted && id.value != 0 }

// PersistedID returns the backend identifier when the record is persisted.
func (id RecordID) PersistedID() (int, bool) {
	if !id.IsPersisted() {
		return 0, false
	}
	return id.value, true
}

// DraftSeq returns the local sequence number when the record is a draft.
func (id RecordID) DraftSeq() (int, bool) {
	if !id.IsDraft() {
		return 0, false
	}
	return id.value, true
}

func (id RecordID) String() string {
	switch {
	case id.IsZero():
		return "<none>"
	case id.persisted:
		return strconv.Itoa(id.value)
	}
	return fmt.Sprintf("draft-%d", id.value)
}
