// Package metadatalist parses a masterlist/userlist YAML document into
// plain-name and regex-name metadata.PluginMetadata collections, and
// implements the FindPlugin lookup with regex fan-in described in the
// component design. YAML is the teacher pack's own choice for structured
// documents (see ushineko-face-puncher-supreme's config loader); the
// teacher repository itself never parses YAML, so this is an ambient-stack
// enrichment pulled from the rest of the example pack.
package metadatalist

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pluginsort/core/internal/metadata"
)

// docFile decodes a File, which in the document format is either a bare
// string (name only) or a map {name, display, condition}.
type docFile struct {
	Name      string `yaml:"name"`
	Display   string `yaml:"display"`
	Condition string `yaml:"condition"`
}

func (d *docFile) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.Name = node.Value
		return nil
	}
	type plain docFile
	var aux plain
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*d = docFile(aux)
	return nil
}

func (d docFile) toMetadata() metadata.File {
	return metadata.File{Name: d.Name, DisplayName: d.Display, Condition: d.Condition}
}

// docTag decodes a Tag: a bare string (optionally "-"-prefixed for
// removal) or a map {name, condition}.
type docTag struct {
	Name       string `yaml:"name"`
	Condition  string `yaml:"condition"`
	isAddition bool
}

func (d *docTag) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		v := node.Value
		if strings.HasPrefix(v, "-") {
			d.Name = strings.TrimPrefix(v, "-")
			d.isAddition = false
		} else {
			d.Name = v
			d.isAddition = true
		}
		return nil
	}
	type plain struct {
		Name      string `yaml:"name"`
		Condition string `yaml:"condition"`
	}
	var aux plain
	if err := node.Decode(&aux); err != nil {
		return err
	}
	d.Name, d.Condition, d.isAddition = aux.Name, aux.Condition, true
	return nil
}

func (d docTag) toMetadata() metadata.Tag {
	return metadata.Tag{Name: d.Name, IsAddition: d.isAddition, Condition: d.Condition}
}

// docMessageContent decodes one {lang, str} pair.
type docMessageContent struct {
	Lang string `yaml:"lang"`
	Str  string `yaml:"str"`
}

// docMessage decodes a Message: {type, content, condition} where content
// is either a bare string (implies English) or a list of {lang, str}.
type docMessage struct {
	Type      string              `yaml:"type"`
	Content   []docMessageContent `yaml:"-"`
	Condition string              `yaml:"condition"`
}

func (d *docMessage) UnmarshalYAML(node *yaml.Node) error {
	type plain struct {
		Type      string    `yaml:"type"`
		Content   yaml.Node `yaml:"content"`
		Condition string    `yaml:"condition"`
	}
	var aux plain
	if err := node.Decode(&aux); err != nil {
		return err
	}
	d.Type = aux.Type
	d.Condition = aux.Condition

	switch aux.Content.Kind {
	case 0:
		// content omitted entirely
	case yaml.ScalarNode:
		d.Content = []docMessageContent{{Lang: metadata.LanguageEnglish, Str: aux.Content.Value}}
	case yaml.SequenceNode:
		if err := aux.Content.Decode(&d.Content); err != nil {
			return err
		}
	default:
		return fmt.Errorf("metadatalist: message content must be a string or a list, got %v", aux.Content.Kind)
	}
	return nil
}

func (d docMessage) toMetadata() (metadata.Message, error) {
	sev, err := parseSeverity(d.Type)
	if err != nil {
		return metadata.Message{}, err
	}
	content := make([]metadata.MessageContent, 0, len(d.Content))
	for _, c := range d.Content {
		lang := c.Lang
		if lang == "" {
			lang = metadata.LanguageEnglish
		}
		content = append(content, metadata.MessageContent{Text: c.Str, Language: lang})
	}
	if len(content) == 0 {
		return metadata.Message{}, fmt.Errorf("metadatalist: message has no content")
	}
	if len(content) > 1 {
		hasEnglish := false
		for _, c := range content {
			if strings.EqualFold(c.Language, metadata.LanguageEnglish) {
				hasEnglish = true
				break
			}
		}
		if !hasEnglish {
			return metadata.Message{}, fmt.Errorf("metadatalist: message with multiple languages must include English (invariant M1)")
		}
	}
	return metadata.Message{Severity: sev, Content: content, Condition: d.Condition}, nil
}

func parseSeverity(t string) (metadata.Severity, error) {
	switch strings.ToLower(t) {
	case "say", "":
		return metadata.SeveritySay, nil
	case "warn":
		return metadata.SeverityWarn, nil
	case "error":
		return metadata.SeverityError, nil
	default:
		return "", fmt.Errorf("metadatalist: unknown message type %q", t)
	}
}

// docLocation decodes a Location: a bare string (URL) or {link, name}.
type docLocation struct {
	Link string `yaml:"link"`
	Name string `yaml:"name"`
}

func (d *docLocation) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.Link = node.Value
		return nil
	}
	type plain docLocation
	var aux plain
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*d = docLocation(aux)
	return nil
}

func (d docLocation) toMetadata() metadata.Location {
	return metadata.Location{URL: d.Link, Name: d.Name}
}

// docCleaningData decodes a PluginCleaningData map {crc, util, itm?, udr?, nav?, info?}.
type docCleaningData struct {
	CRC  string              `yaml:"crc"`
	Util string              `yaml:"util"`
	ITM  uint32              `yaml:"itm"`
	UDR  uint32              `yaml:"udr"`
	Nav  uint32              `yaml:"nav"`
	Info []docMessageContent `yaml:"info"`
}

func (d docCleaningData) toMetadata() (metadata.PluginCleaningData, error) {
	crc, err := parseCRC(d.CRC)
	if err != nil {
		return metadata.PluginCleaningData{}, err
	}
	info := make([]metadata.MessageContent, 0, len(d.Info))
	for _, c := range d.Info {
		lang := c.Lang
		if lang == "" {
			lang = metadata.LanguageEnglish
		}
		info = append(info, metadata.MessageContent{Text: c.Str, Language: lang})
	}
	return metadata.PluginCleaningData{
		CRC: crc, ITM: d.ITM, DeletedRefs: d.UDR, DeletedNavmeshes: d.Nav,
		Utility: d.Util, Info: info,
	}, nil
}

func parseCRC(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if s == "" {
		return 0, fmt.Errorf("metadatalist: empty crc")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("metadatalist: invalid crc %q: %w", s, err)
	}
	return uint32(v), nil
}

// docPluginMetadata decodes one entry of the top-level `plugins` list.
type docPluginMetadata struct {
	Name           string             `yaml:"name"`
	Enabled        *bool              `yaml:"enabled"`
	Priority       *int8              `yaml:"priority"`
	GlobalPriority *int8              `yaml:"global_priority"`
	After          []docFile          `yaml:"after"`
	Req            []docFile          `yaml:"req"`
	Inc            []docFile          `yaml:"inc"`
	Msg            []docMessage       `yaml:"msg"`
	Tag            []docTag           `yaml:"tag"`
	Dirty          []docCleaningData  `yaml:"dirty"`
	Clean          []docCleaningData  `yaml:"clean"`
	URL            []docLocation      `yaml:"url"`
}

// document is the top-level shape: {globals, plugins, common}.
type document struct {
	Globals []docMessage        `yaml:"globals"`
	Plugins []docPluginMetadata `yaml:"plugins"`
	Common  yaml.Node           `yaml:"common"`
}
