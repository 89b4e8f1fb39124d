// Package gametype defines the five supported game-type values and the
// rules they fix: main master filename, archive-auto-load behavior, and
// which plugin-reader variant to dispatch to. Ground truth:
// original_source/include/loot/game_type.h.
package gametype

import "fmt"

type Type int

const (
	TES4 Type = iota // The Elder Scrolls IV: Oblivion
	TES5              // The Elder Scrolls V: Skyrim
	FO3               // Fallout 3
	FONV              // Fallout: New Vegas
	FO4               // Fallout 4
)

func (t Type) String() string {
	switch t {
	case TES4:
		return "tes4"
	case TES5:
		return "tes5"
	case FO3:
		return "fo3"
	case FONV:
		return "fonv"
	case FO4:
		return "fo4"
	default:
		return fmt.Sprintf("gametype(%d)", int(t))
	}
}

// MainMasterFile is the game's root plugin: always loaded first, and
// loaded headers-only once identified, since every non-master plugin
// already lists it as a master.
func (t Type) MainMasterFile() string {
	switch t {
	case TES4:
		return "Oblivion.esm"
	case TES5:
		return "Skyrim.esm"
	case FO3:
		return "Fallout3.esm"
	case FONV:
		return "FalloutNV.esm"
	case FO4:
		return "Fallout4.esm"
	default:
		return ""
	}
}

// ArchiveLoadRule describes how a companion archive is auto-loaded for a
// plugin of this game type.
type ArchiveLoadRule struct {
	// EspCanLoadArchive is true when a non-master plugin can have its own
	// auto-loaded archive (true for every supported game except the
	// original Oblivion convention, which only auto-loads archives sharing
	// a master's exact basename).
	EspCanLoadArchive bool
	// PrefixMatch is true when the game matches archives by basename
	// prefix rather than requiring an exact basename match (Fallout 4's
	// " - Main.ba2" style suffixed archive names).
	PrefixMatch bool
}

func (t Type) ArchiveLoadRule() ArchiveLoadRule {
	switch t {
	case TES4:
		return ArchiveLoadRule{EspCanLoadArchive: false, PrefixMatch: false}
	case FO4:
		return ArchiveLoadRule{EspCanLoadArchive: true, PrefixMatch: true}
	default: // TES5, FO3, FONV
		return ArchiveLoadRule{EspCanLoadArchive: true, PrefixMatch: false}
	}
}

// Parse maps a game-type tag string (as used in configuration) to a Type.
func Parse(s string) (Type, error) {
	switch s {
	case "tes4":
		return TES4, nil
	case "tes5":
		return TES5, nil
	case "fo3":
		return FO3, nil
	case "fonv":
		return FONV, nil
	case "fo4":
		return FO4, nil
	default:
		return 0, fmt.Errorf("gametype: unrecognized game type %q", s)
	}
}
