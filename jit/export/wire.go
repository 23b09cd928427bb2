// Package export serializes runtime reports for out-of-process consumers.
package export

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/penguin-wwy/cinder/jit"
)

// cborEncMode uses canonical mode so equal envelopes encode to equal
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Envelope wraps one fetch-and-clear read of the profiling and deopt
// reports. The ID is unique per read so downstream consumers can
// deduplicate replayed envelopes; the reports themselves are already
// at-most-once at the source.
type Envelope struct {
	ID        string              `cbor:"id"`
	CreatedAt time.Time           `cbor:"created_at"`
	Profile   []jit.ProfileRecord `cbor:"profile"`
	Deopts    []jit.DeoptRecord   `cbor:"deopt"`
}

// NewEnvelope stamps the given reports with a fresh ID and timestamp. The
// timestamp has second granularity; canonical CBOR encodes times as epoch
// seconds, and envelopes must survive a round trip unchanged.
func NewEnvelope(profile []jit.ProfileRecord, deopts []jit.DeoptRecord) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Profile:   profile,
		Deopts:    deopts,
	}
}

// MarshalEnvelope serializes an Envelope to CBOR bytes.
func MarshalEnvelope(e *Envelope) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEnvelope deserializes an Envelope from CBOR bytes.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("export: unmarshal envelope: %w", err)
	}
	return &e, nil
}

// MarshalProfile serializes a bare profile report to CBOR bytes.
func MarshalProfile(records []jit.ProfileRecord) ([]byte, error) {
	return cborEncMode.Marshal(records)
}

// UnmarshalProfile deserializes a bare profile report from CBOR bytes.
func UnmarshalProfile(data []byte) ([]jit.ProfileRecord, error) {
	var records []jit.ProfileRecord
	if err := cbor.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("export: unmarshal profile: %w", err)
	}
	return records, nil
}
