// Package pluginfile is the concrete PluginReader collaborator: it opens a
// binary plugin file and exposes the header fields, master list, record
// identifiers, description, CRC and record count that the rest of the
// core needs. It is adapted from the teacher's internal/plugin package
// (the same TES4 record/subrecord binary layout) and extended per
// original_source/src/backend/plugin.cpp's Plugin constructor: CRC-32,
// FormID pairing, override-record counting, ghosted-plugin fallback, Bash
// Tag extraction, Windows-1252 decoding and version extraction.
package pluginfile

import "encoding/json"

// Type mirrors the teacher's PluginType classification.
type Type string

const (
	TypeESM Type = "ESM"
	TypeESP Type = "ESP"
	TypeESL Type = "ESL"
)

// RecordID pairs the 24-bit local id of a record with the filename of the
// plugin that defines it — the core's representation of a FormID, stored
// so the same on-disk integer can be compared correctly across plugins
// with different master lists (see GLOSSARY).
type RecordID struct {
	DefiningFile string // lowercased
	LocalID      uint32 // 24 bits
}

// PluginFile is the result of opening one plugin.
type PluginFile struct {
	Filename   string
	Lowercased string

	IsMaster bool
	IsLight  bool
	Type     Type
	IsEmpty  bool

	Description string
	Version     string

	Masters []string

	RecordIDs           map[RecordID]struct{}
	OverrideRecordCount int

	CRC uint32

	BashTags []string

	NumRecords uint32
}

// pluginFileJSON is the wire shape used to persist a PluginFile in
// internal/headercache: encoding/json cannot marshal a map keyed by the
// struct type RecordID directly, so RecordIDs round-trips as a slice.
type pluginFileJSON struct {
	Filename            string
	Lowercased          string
	IsMaster            bool
	IsLight             bool
	Type                Type
	IsEmpty             bool
	Description         string
	Version             string
	Masters             []string
	RecordIDs           []RecordID
	OverrideRecordCount int
	CRC                 uint32
	BashTags            []string
	NumRecords          uint32
}

func (p PluginFile) MarshalJSON() ([]byte, error) {
	ids := make([]RecordID, 0, len(p.RecordIDs))
	for id := range p.RecordIDs {
		ids = append(ids, id)
	}
	return json.Marshal(pluginFileJSON{
		Filename:            p.Filename,
		Lowercased:          p.Lowercased,
		IsMaster:            p.IsMaster,
		IsLight:             p.IsLight,
		Type:                p.Type,
		IsEmpty:             p.IsEmpty,
		Description:         p.Description,
		Version:             p.Version,
		Masters:             p.Masters,
		RecordIDs:           ids,
		OverrideRecordCount: p.OverrideRecordCount,
		CRC:                 p.CRC,
		BashTags:            p.BashTags,
		NumRecords:          p.NumRecords,
	})
}

func (p *PluginFile) UnmarshalJSON(data []byte) error {
	var w pluginFileJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ids := make(map[RecordID]struct{}, len(w.RecordIDs))
	for _, id := range w.RecordIDs {
		ids[id] = struct{}{}
	}
	*p = PluginFile{
		Filename:            w.Filename,
		Lowercased:          w.Lowercased,
		IsMaster:            w.IsMaster,
		IsLight:             w.IsLight,
		Type:                w.Type,
		IsEmpty:             w.IsEmpty,
		Description:         w.Description,
		Version:             w.Version,
		Masters:             w.Masters,
		RecordIDs:           ids,
		OverrideRecordCount: w.OverrideRecordCount,
		CRC:                 w.CRC,
		BashTags:            w.BashTags,
		NumRecords:          w.NumRecords,
	}
	return nil
}

// Record flag constants for the TES4 record, identical to the teacher's.
const (
	flagMaster    uint32 = 0x00000001
	flagCompress  uint32 = 0x00040000
	flagLocalized uint32 = 0x00000080
	flagLight     uint32 = 0x00000200
)

const (
	sigTES4 = "TES4"
	sigGRUP = "GRUP"
	sigHEDR = "HEDR"
	sigCNAM = "CNAM"
	sigSNAM = "SNAM"
	sigMAST = "MAST"
	sigDATA = "DATA"
)
