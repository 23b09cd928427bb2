package jit

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Report construction
// ---------------------------------------------------------------------------
// Reports consume their source state as a single logical transaction: the
// record sequence is materialized completely before anything is cleared, so
// a failure partway leaves the profiling tables untouched and a retried
// read is equivalent to the original.

// ProfileRecord is one row of the type-profile report. Three shapes share
// the struct: a histogram row carries its type tuple, the overflow bucket
// carries the single pseudo-type "<other>", and the per-code untyped
// remainder carries no types and no instruction fields (Line and BCOffset
// are -1).
type ProfileRecord struct {
	FuncQualname string   `cbor:"func_qualname"`
	Filename     string   `cbor:"filename"`
	CodeHash     uint64   `cbor:"code_hash"`
	FirstLine    int      `cbor:"firstlineno"`
	Line         int      `cbor:"lineno"`
	BCOffset     int      `cbor:"bc_offset"`
	Opname       string   `cbor:"opname,omitempty"`
	Types        []string `cbor:"types,omitempty"`
	Count        int64    `cbor:"count"`
}

// DeoptRecord is one row of the deopt report: the same site identity as a
// profile record, but keyed by a single guilty type with a fixed reason
// code and free-text description instead of an operand tuple.
type DeoptRecord struct {
	FuncQualname string `cbor:"func_qualname"`
	Filename     string `cbor:"filename"`
	Line         int    `cbor:"lineno"`
	BCOffset     int    `cbor:"bc_offset"`
	Reason       string `cbor:"reason"`
	Description  string `cbor:"description"`
	GuiltyType   string `cbor:"guilty_type"`
	Count        uint64 `cbor:"count"`
}

// reportBuilder chains the fallible steps of report construction; the
// first failure sticks and every later step is a no-op, so the caller
// checks err exactly once and clears source state only on success.
type reportBuilder struct {
	records []ProfileRecord
	err     error
}

func (b *reportBuilder) opName(op Opcode) string {
	if b.err != nil {
		return ""
	}
	info, ok := opTable[op]
	if !ok {
		b.err = fmt.Errorf("jit: no name for profiled opcode %d", op)
		return ""
	}
	return info.name
}

func (b *reportBuilder) emit(rec ProfileRecord) {
	if b.err != nil {
		return
	}
	b.records = append(b.records, rec)
}

// GetAndClearTypeProfiles renders every non-empty histogram row observed
// since the last read and clears all profiling state. For each code object
// it emits one record per seated row, one "<other>" record when the
// overflow bucket is non-zero, and a final untyped record for the hits the
// bulk counter saw but no histogram did. On error nothing is cleared.
func (c *Controller) GetAndClearTypeProfiles() ([]ProfileRecord, error) {
	b := &reportBuilder{}

	for _, code := range sortedProfileCodes(c.typeProfiles) {
		cp := c.typeProfiles[code]
		qualname := code.QualName
		if qualname == "" {
			qualname = "<unknown>"
		}
		hash := code.Hash()

		var profiled int64
		for _, offset := range sortedOffsets(cp.sites) {
			site := cp.sites[offset]
			hist := site.hist
			if hist.Empty() {
				continue
			}
			opname := b.opName(site.op)
			line := code.LineAt(offset)

			for row := 0; row < hist.Rows() && hist.Count(row) != 0; row++ {
				names := make([]string, hist.Cols())
				for col := 0; col < hist.Cols(); col++ {
					names[col] = hist.TypeAt(row, col).DisplayName()
				}
				count := int64(hist.Count(row))
				b.emit(ProfileRecord{
					FuncQualname: qualname,
					Filename:     code.Filename,
					CodeHash:     hash,
					FirstLine:    code.FirstLine,
					Line:         line,
					BCOffset:     offset,
					Opname:       opname,
					Types:        names,
					Count:        count,
				})
				profiled += count
			}

			if other := int64(hist.Other()); other > 0 {
				b.emit(ProfileRecord{
					FuncQualname: qualname,
					Filename:     code.Filename,
					CodeHash:     hash,
					FirstLine:    code.FirstLine,
					Line:         line,
					BCOffset:     offset,
					Opname:       opname,
					Types:        []string{"<other>"},
					Count:        other,
				})
				profiled += other
			}
		}

		untyped := cp.totalHits - profiled
		if untyped < 0 {
			// The bulk counter and the per-site histograms are fed by
			// independent paths; a negative remainder is an accounting
			// defect, never a legitimate value.
			c.logger.Warn("untyped hit count went negative, clamping",
				zap.String("code", qualname),
				zap.Int64("untyped", untyped))
			untyped = 0
		}
		if untyped != 0 {
			b.emit(ProfileRecord{
				FuncQualname: qualname,
				Filename:     code.Filename,
				CodeHash:     hash,
				FirstLine:    code.FirstLine,
				Line:         -1,
				BCOffset:     -1,
				Count:        untyped,
			})
		}
	}

	if b.err != nil {
		return nil, b.err
	}
	c.typeProfiles = make(map[*CodeObject]*codeProfile)
	return b.records, nil
}

// ClearTypeProfiles drops all profiling state without building a report.
func (c *Controller) ClearTypeProfiles() {
	c.typeProfiles = make(map[*CodeObject]*codeProfile)
}

// GetAndClearDeoptStats renders the accumulated deopt events and clears
// them. Sites with guilty-type observations emit one record per seated
// type and an "<other>" record for the overflow bucket; sites without any
// emit a single "<none>" record carrying the site's full count.
func (c *Controller) GetAndClearDeoptStats() []DeoptRecord {
	keys := sortedDeoptKeys(c.deoptStats)
	records := make([]DeoptRecord, 0, len(keys))

	for _, key := range keys {
		stat := c.deoptStats[key]
		base := DeoptRecord{
			FuncQualname: key.code.QualName,
			Filename:     key.code.Filename,
			Line:         key.code.LineAt(key.offset),
			BCOffset:     key.offset,
			Reason:       key.reason.String(),
			Description:  key.descr,
		}
		if stat.guilty.Empty() {
			rec := base
			rec.GuiltyType = "<none>"
			rec.Count = stat.count
			records = append(records, rec)
			continue
		}
		for row := 0; row < stat.guilty.Rows() && stat.guilty.Count(row) != 0; row++ {
			rec := base
			rec.GuiltyType = stat.guilty.TypeAt(row, 0).DisplayName()
			rec.Count = stat.guilty.Count(row)
			records = append(records, rec)
		}
		if other := stat.guilty.Other(); other > 0 {
			rec := base
			rec.GuiltyType = "<other>"
			rec.Count = other
			records = append(records, rec)
		}
	}

	c.deoptStats = make(map[deoptKey]*deoptStat)
	return records
}

func sortedProfileCodes(profiles map[*CodeObject]*codeProfile) []*CodeObject {
	codes := make([]*CodeObject, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if codes[i].QualName != codes[j].QualName {
			return codes[i].QualName < codes[j].QualName
		}
		if codes[i].Filename != codes[j].Filename {
			return codes[i].Filename < codes[j].Filename
		}
		return codes[i].FirstLine < codes[j].FirstLine
	})
	return codes
}

func sortedOffsets(sites map[int]*profileSite) []int {
	offsets := make([]int, 0, len(sites))
	for off := range sites {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	return offsets
}

func sortedDeoptKeys(stats map[deoptKey]*deoptStat) []deoptKey {
	keys := make([]deoptKey, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.code.QualName != b.code.QualName {
			return a.code.QualName < b.code.QualName
		}
		if a.offset != b.offset {
			return a.offset < b.offset
		}
		if a.reason != b.reason {
			return a.reason < b.reason
		}
		return a.descr < b.descr
	})
	return keys
}
