// Package metadata implements the immutable value types that make up a
// plugin's merged metadata (File, Tag, Message, MessageContent, Location,
// PluginCleaningData, Priority, PluginMetadata) and the Merge/Diff/New set
// operations between two PluginMetadata values.
package metadata

import (
	"regexp"
	"strings"
)

// File models a master, requirement, incompatibility or load-after entry.
// Equality and ordering are by case-insensitive Name only; DisplayName and
// Condition are payload that rides along with whichever copy is inserted
// first during a merge.
type File struct {
	Name        string
	DisplayName string
	Condition   string
}

func (f File) key() string { return strings.ToLower(f.Name) }

// Tag is a Bash Tag suggestion. A Tag can appear both as an addition and a
// removal for the same name without collision (invariant P4), so equality
// for set membership includes the IsAddition flag.
type Tag struct {
	Name       string
	IsAddition bool
	Condition  string
}

func (t Tag) key() string {
	sign := "+"
	if !t.IsAddition {
		sign = "-"
	}
	return sign + strings.ToLower(t.Name)
}

// MessageContent is one language's rendering of a Message.
type MessageContent struct {
	Text     string
	Language string
}

const LanguageEnglish = "en"

// Severity is the level at which a Message is surfaced.
type Severity string

const (
	SeveritySay   Severity = "say"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Message carries a non-empty list of MessageContent in distinct
// languages, gated by an optional Condition. Invariant M1: if Content has
// more than one element, one of them must be English.
type Message struct {
	Severity  Severity
	Content   []MessageContent
	Condition string
}

// NewMessage constructs a single-language (English) message, the common
// case throughout the masterlist.
func NewMessage(sev Severity, text string) Message {
	return Message{Severity: sev, Content: []MessageContent{{Text: text, Language: LanguageEnglish}}}
}

// Localize selects the content string for the requested language, falling
// back to English per invariant M1, and finally to the first entry if
// somehow neither is present (malformed input should never reach here
// past validation, but Localize must still return something).
func (m Message) Localize(lang string) string {
	var english string
	for _, c := range m.Content {
		if strings.EqualFold(c.Language, lang) {
			return c.Text
		}
		if strings.EqualFold(c.Language, LanguageEnglish) {
			english = c.Text
		}
	}
	if english != "" {
		return english
	}
	if len(m.Content) > 0 {
		return m.Content[0].Text
	}
	return ""
}

func (m Message) equal(o Message) bool {
	if m.Severity != o.Severity || m.Condition != o.Condition {
		return false
	}
	if len(m.Content) != len(o.Content) {
		return false
	}
	for i := range m.Content {
		if m.Content[i] != o.Content[i] {
			return false
		}
	}
	return true
}

// Priority carries both a value and an explicit bit, per §9's resolution
// of the two historical priority-model versions: a small struct, not a
// sentinel-encoded integer. Global is a separate flag, not an encoding in
// the magnitude: a Global priority compares against every other plugin,
// not only conflicting ones.
type Priority struct {
	Value    int8
	Explicit bool
	Global   bool
}

// PluginCleaningData records a dirty/clean annotation for one CRC-stamped
// build of a plugin. Equality is by CRC alone.
type PluginCleaningData struct {
	CRC              uint32
	ITM              uint32
	DeletedRefs      uint32
	DeletedNavmeshes uint32
	Utility          string
	Info             []MessageContent
}

// Location is an external reference URL, with an optional display name.
type Location struct {
	URL  string
	Name string
}

func (l Location) key() string { return l.URL }

// PluginMetadata is the per-plugin-name bundle of rules contributed by a
// masterlist/userlist entry (or accumulated during merge+evaluate). Name is
// either a literal filename or, per invariant P5, a regular expression
// when it ends with the literal two characters `\.esp` or `\.esm`.
type PluginMetadata struct {
	Name          string
	IsRegex       bool
	CompiledRegex *regexp.Regexp

	Enabled bool

	LocalPriority  Priority
	GlobalPriority Priority

	LoadAfter         []File
	Requirements      []File
	Incompatibilities []File

	Messages []Message

	Tags []Tag

	DirtyInfo []PluginCleaningData
	CleanInfo []PluginCleaningData

	Locations []Location
}

// NewPluginMetadata returns a PluginMetadata carrying only a name, enabled
// by default, with every payload field empty — i.e. HasNameOnly() is true.
func NewPluginMetadata(name string) PluginMetadata {
	return PluginMetadata{Name: name, Enabled: true}
}

// HasNameOnly is true iff every payload field is empty/default; used by
// MergeMetadata to treat a name-only source as a no-op merge.
func (p PluginMetadata) HasNameOnly() bool {
	return len(p.LoadAfter) == 0 &&
		len(p.Requirements) == 0 &&
		len(p.Incompatibilities) == 0 &&
		len(p.Messages) == 0 &&
		len(p.Tags) == 0 &&
		len(p.DirtyInfo) == 0 &&
		len(p.CleanInfo) == 0 &&
		len(p.Locations) == 0 &&
		!p.LocalPriority.Explicit &&
		!p.GlobalPriority.Explicit
}

// EqualName reports whether two PluginMetadata refer to the same plugin
// name, case-insensitively — the sole equality key for PluginMetadata per
// §4.3.
func (p PluginMetadata) EqualName(o PluginMetadata) bool {
	return strings.EqualFold(p.Name, o.Name)
}
