package model

import (
	"encoding/json"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet used for locally synthesized pending tokens. Server identifiers
// come from the record store and are never generated here.
const pendingAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// RecordID identifies a record either by its server-assigned identifier or
// by a locally synthesized token for a record that has not been confirmed
// yet. Code branches on the tag, never on the shape of the string.
type RecordID struct {
	value   string
	pending bool
}

// NewPendingID synthesizes a fresh local token for an unconfirmed record.
func NewPendingID() RecordID {
	return RecordID{value: gonanoid.MustGenerate(pendingAlphabet, 15), pending: true}
}

// ConfirmedID wraps a server-assigned identifier.
func ConfirmedID(value string) RecordID {
	return RecordID{value: value}
}

// IsPending reports whether the identifier is a local token awaiting
// confirmation by the record store.
func (id RecordID) IsPending() bool {
	return id.pending
}

// IsZero reports whether the identifier is unset.
func (id RecordID) IsZero() bool {
	return id.value == ""
}

// String returns the raw identifier value.
func (id RecordID) String() string {
	return id.value
}

// Equal reports whether two identifiers name the same record. A pending
// token never equals a confirmed identifier, even with the same value.
func (id RecordID) Equal(other RecordID) bool {
	return id.value == other.value && id.pending == other.pending
}

// MarshalJSON emits the raw identifier value.
func (id RecordID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON reads a server-assigned identifier. Records on the wire are
// always confirmed; pending tokens exist only in local memory.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*id = ConfirmedID(value)
	return nil
}
