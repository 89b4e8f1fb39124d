package metadatalist

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pluginsort/core/internal/apperr"
	"github.com/pluginsort/core/internal/metadata"
)

// MetadataList is a parsed masterlist/userlist document.
type MetadataList struct {
	Globals []metadata.Message
	Plain   []metadata.PluginMetadata
	Regex   []metadata.PluginMetadata

	RevisionHash string
	RevisionDate string
	Edited       bool
}

// isRegexName implements invariant P5: a name is a regex iff it ends with
// the literal two-character marker `\.esp` or `\.esm`.
func isRegexName(name string) bool {
	return strings.HasSuffix(name, `\.esp`) || strings.HasSuffix(name, `\.esm`)
}

// Parse reads a masterlist/userlist document from r. Unknown keys at the
// top level, in plugin entries and in cleaning-data entries are rejected
// with a parse error (yaml.v3's KnownFields strict-decoding mode). Keys
// inside the map forms of file, tag, message and location entries are
// decoded by their own UnmarshalYAML methods and are not checked, so
// unknown keys there are ignored. Plain-name duplicates and regex compile
// failures are hard parse errors.
func Parse(r io.Reader) (*MetadataList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.PathReadFail, "read metadata document", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &MetadataList{}, nil
		}
		return nil, apperr.Wrap(apperr.InvalidArgs, "parse metadata document", err)
	}

	list := &MetadataList{}

	for _, g := range doc.Globals {
		m, err := g.toMetadata()
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidArgs, "parse globals", err)
		}
		list.Globals = append(list.Globals, m)
	}

	seenPlain := make(map[string]struct{})

	for _, dp := range doc.Plugins {
		pm, err := toPluginMetadata(dp)
		if err != nil {
			return nil, apperr.Wrap(apperr.InvalidArgs, "parse plugin entry "+dp.Name, err)
		}

		if isRegexName(pm.Name) {
			re, err := compileFanInRegex(pm.Name)
			if err != nil {
				return nil, apperr.Wrap(apperr.RegexEvalFail, "compile regex plugin name "+pm.Name, err)
			}
			pm.IsRegex = true
			pm.CompiledRegex = re
			// Invariant P2: a regex entry never carries dirty-info.
			if len(pm.DirtyInfo) > 0 {
				return nil, apperr.New(apperr.InvalidArgs, "regex plugin entry "+pm.Name+" must not carry dirty-info")
			}
			list.Regex = append(list.Regex, pm)
			continue
		}

		key := strings.ToLower(pm.Name)
		if _, dup := seenPlain[key]; dup {
			return nil, apperr.New(apperr.InvalidArgs, "duplicate plain-name plugin entry "+pm.Name)
		}
		seenPlain[key] = struct{}{}
		list.Plain = append(list.Plain, pm)
	}

	return list, nil
}

func compileFanInRegex(name string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + name)
}

func toPluginMetadata(d docPluginMetadata) (metadata.PluginMetadata, error) {
	if d.Name == "" {
		return metadata.PluginMetadata{}, fmt.Errorf("plugin entry missing required name")
	}
	pm := metadata.NewPluginMetadata(d.Name)
	if d.Enabled != nil {
		pm.Enabled = *d.Enabled
	}
	if d.Priority != nil {
		pm.LocalPriority = metadata.Priority{Value: *d.Priority, Explicit: true}
	}
	if d.GlobalPriority != nil {
		pm.GlobalPriority = metadata.Priority{Value: *d.GlobalPriority, Explicit: true, Global: true}
	}
	for _, f := range d.After {
		pm.LoadAfter = append(pm.LoadAfter, f.toMetadata())
	}
	for _, f := range d.Req {
		pm.Requirements = append(pm.Requirements, f.toMetadata())
	}
	for _, f := range d.Inc {
		pm.Incompatibilities = append(pm.Incompatibilities, f.toMetadata())
	}
	for _, t := range d.Tag {
		pm.Tags = append(pm.Tags, t.toMetadata())
	}
	for _, m := range d.Msg {
		mm, err := m.toMetadata()
		if err != nil {
			return metadata.PluginMetadata{}, err
		}
		pm.Messages = append(pm.Messages, mm)
	}
	for _, c := range d.Dirty {
		cc, err := c.toMetadata()
		if err != nil {
			return metadata.PluginMetadata{}, err
		}
		pm.DirtyInfo = append(pm.DirtyInfo, cc)
	}
	for _, c := range d.Clean {
		cc, err := c.toMetadata()
		if err != nil {
			return metadata.PluginMetadata{}, err
		}
		pm.CleanInfo = append(pm.CleanInfo, cc)
	}
	for _, l := range d.URL {
		pm.Locations = append(pm.Locations, l.toMetadata())
	}
	return pm, nil
}

// FindPlugin accumulates the plain-name entry (if any) and every matching
// regex-name entry's metadata for pluginName, in document order. The
// masters parameter is accepted for interface parity with the original
// lookup signature but is not consulted by the algorithm described in the
// component design — matching is purely name-based.
func (l *MetadataList) FindPlugin(pluginName string, masters []string) metadata.PluginMetadata {
	result := metadata.NewPluginMetadata(pluginName)

	for _, p := range l.Plain {
		if strings.EqualFold(p.Name, pluginName) {
			result = result.MergeMetadata(p)
			break
		}
	}

	for _, p := range l.Regex {
		if p.CompiledRegex != nil && p.CompiledRegex.MatchString(pluginName) {
			result = result.MergeMetadata(p)
		}
	}

	return result
}
