package metadatalist

import (
	"strings"
	"testing"
)

func TestParseGlobalsPluginsAndFindPlugin(t *testing.T) {
	doc := `
globals:
  - type: warn
    content: "global notice"
plugins:
  - name: B.esp
    msg:
      - type: say
        content: "plain message"
  - name: '.+\.esp'
    msg:
      - type: say
        content: "regex message"
`
	list, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(list.Globals) != 1 {
		t.Fatalf("expected 1 global message, got %d", len(list.Globals))
	}
	if len(list.Plain) != 1 || len(list.Regex) != 1 {
		t.Fatalf("expected 1 plain + 1 regex entry, got plain=%d regex=%d", len(list.Plain), len(list.Regex))
	}

	merged := list.FindPlugin("B.esp", nil)
	if len(merged.Messages) != 2 {
		t.Fatalf("expected plain then regex messages (S5), got %d: %v", len(merged.Messages), merged.Messages)
	}
	if merged.Messages[0].Localize("en") != "plain message" {
		t.Errorf("expected plain-name message first, got %q", merged.Messages[0].Localize("en"))
	}
	if merged.Messages[1].Localize("en") != "regex message" {
		t.Errorf("expected regex message second, got %q", merged.Messages[1].Localize("en"))
	}
}

func TestParseRejectsDuplicatePlainNames(t *testing.T) {
	doc := `
plugins:
  - name: A.esp
  - name: a.esp
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for duplicate plain-name entries")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	doc := `
plugins:
  - name: A.esp
    bogus: true
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseRejectsBadRegex(t *testing.T) {
	doc := `
plugins:
  - name: '(unclosed\.esp'
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for invalid regex plugin name")
	}
}

func TestParseRejectsDirtyInfoOnRegexEntry(t *testing.T) {
	doc := `
plugins:
  - name: '.+\.esp'
    dirty:
      - crc: deadbeef
        util: "TES5Edit"
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error: regex entry must not carry dirty-info (P2)")
	}
}

func TestParseMultiLanguageMessageRequiresEnglish(t *testing.T) {
	doc := `
globals:
  - type: say
    content:
      - lang: de
        str: "Hallo"
      - lang: fr
        str: "Bonjour"
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error: multi-language message without English violates M1")
	}
}

func TestPriorityExplicitFlag(t *testing.T) {
	doc := `
plugins:
  - name: A.esp
    priority: 5
`
	list, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !list.Plain[0].LocalPriority.Explicit || list.Plain[0].LocalPriority.Value != 5 {
		t.Errorf("expected explicit priority 5, got %+v", list.Plain[0].LocalPriority)
	}
}
