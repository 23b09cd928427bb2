package export

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/penguin-wwy/cinder/jit"
)

func sampleProfile() []jit.ProfileRecord {
	return []jit.ProfileRecord{
		{
			FuncQualname: "pkg.f",
			Filename:     "test.py",
			CodeHash:     0xdeadbeef,
			FirstLine:    1,
			Line:         2,
			BCOffset:     4,
			Opname:       "BINARY_ADD",
			Types:        []string{"int", "int"},
			Count:        17,
		},
		{
			FuncQualname: "pkg.f",
			Filename:     "test.py",
			CodeHash:     0xdeadbeef,
			FirstLine:    1,
			Line:         -1,
			BCOffset:     -1,
			Count:        3,
		},
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	deopts := []jit.DeoptRecord{{
		FuncQualname: "pkg.f",
		Filename:     "test.py",
		Line:         2,
		BCOffset:     4,
		Reason:       "GuardFailure",
		Description:  "type guard",
		GuiltyType:   "str",
		Count:        5,
	}}

	env := NewEnvelope(sampleProfile(), deopts)
	data, err := MarshalEnvelope(env)
	if err != nil {
		t.Fatal(err)
	}

	got, err := UnmarshalEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != env.ID {
		t.Errorf("id = %q, want %q", got.ID, env.ID)
	}
	if !got.CreatedAt.Equal(env.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, env.CreatedAt)
	}
	if !reflect.DeepEqual(got.Profile, sampleProfile()) {
		t.Errorf("profile = %+v", got.Profile)
	}
	if len(got.Deopts) != 1 || got.Deopts[0] != deopts[0] {
		t.Errorf("deopts = %+v", got.Deopts)
	}
}

func TestEnvelopeIDsAreDistinct(t *testing.T) {
	a := NewEnvelope(nil, nil)
	b := NewEnvelope(nil, nil)
	if a.ID == b.ID {
		t.Error("each envelope should get a fresh id")
	}
}

func TestProfileEncodingIsCanonical(t *testing.T) {
	first, err := MarshalProfile(sampleProfile())
	if err != nil {
		t.Fatal(err)
	}
	second, err := MarshalProfile(sampleProfile())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("equal reports should encode to equal bytes")
	}

	back, err := UnmarshalProfile(first)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 2 || back[0].Opname != "BINARY_ADD" {
		t.Errorf("round trip = %+v", back)
	}
}
