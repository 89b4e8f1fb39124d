// Package mergeeval runs the per-plugin pipeline (C6) that produces the
// effective metadata C7 sorts against: intrinsic Bash Tags, masterlist
// merge, userlist merge, condition evaluation/localization, dirty-info CRC
// filtering and install-validity diagnostics. Grounded on spec.md §4.6;
// the call sequencing is orchestration glue with no third-party dependency
// of its own, matching the teacher's plain service-method style (e.g.
// internal/conflict's detector methods).
package mergeeval

import (
	"context"
	"fmt"
	"strings"

	"github.com/pluginsort/core/internal/condition"
	"github.com/pluginsort/core/internal/gamestate"
	"github.com/pluginsort/core/internal/metadata"
)

const filterTag = "filter"

// Evaluate runs the full pipeline for one installed plugin and returns its
// effective metadata, ready for the plugin graph.
func Evaluate(ctx context.Context, g *gamestate.Game, p *gamestate.Plugin, lang string) (metadata.PluginMetadata, error) {
	eff := intrinsicMetadata(p)

	if g.Masterlist != nil {
		eff = eff.MergeMetadata(g.Masterlist.FindPlugin(p.Filename, p.Masters))
	}

	if g.Userlist != nil {
		userEntry := g.Userlist.FindPlugin(p.Filename, p.Masters)
		if userEntry.Enabled {
			eff = eff.MergeMetadata(userEntry)
		} else {
			eff.Enabled = false
		}
	}

	evaluated, err := evaluateConditions(ctx, eff, g, lang)
	if err != nil {
		return metadata.PluginMetadata{}, err
	}
	evaluated.DirtyInfo = filterDirtyInfoByCRC(evaluated.DirtyInfo, p.CRC)
	evaluated.CleanInfo = filterDirtyInfoByCRC(evaluated.CleanInfo, p.CRC)

	evaluated.Messages = append(evaluated.Messages, validityMessages(g, p, evaluated)...)
	evaluated.Messages = append(evaluated.Messages, cleaningMessages(evaluated.DirtyInfo)...)

	return evaluated, nil
}

// intrinsicMetadata seeds a plugin's metadata from the Bash Tags embedded
// in its own description, before any masterlist/userlist contribution.
func intrinsicMetadata(p *gamestate.Plugin) metadata.PluginMetadata {
	pm := metadata.NewPluginMetadata(p.Filename)
	for _, tag := range p.BashTags {
		name := tag
		addition := true
		if strings.HasPrefix(tag, "-") {
			name = strings.TrimPrefix(tag, "-")
			addition = false
		}
		pm.Tags = append(pm.Tags, metadata.Tag{Name: name, IsAddition: addition})
	}
	return pm
}

// evaluateConditions evaluates every condition-bearing item in src and
// drops the ones that evaluate false; message content is localized to
// lang. Plugin names are always literal here (we are iterating installed
// plugins, never a regex entry), so dirty-info's regex exclusion (P2)
// never applies at this stage.
func evaluateConditions(ctx context.Context, src metadata.PluginMetadata, ev condition.Evaluator, lang string) (metadata.PluginMetadata, error) {
	out := src
	out.LoadAfter = nil
	out.Requirements = nil
	out.Incompatibilities = nil
	out.Tags = nil
	out.Locations = nil
	out.Messages = nil

	cache := cacheFor(ev)

	for _, f := range src.LoadAfter {
		ok, err := evalCond(ctx, cache, f.Condition, ev)
		if err != nil {
			return metadata.PluginMetadata{}, err
		}
		if ok {
			out.LoadAfter = append(out.LoadAfter, f)
		}
	}
	for _, f := range src.Requirements {
		ok, err := evalCond(ctx, cache, f.Condition, ev)
		if err != nil {
			return metadata.PluginMetadata{}, err
		}
		if ok {
			out.Requirements = append(out.Requirements, f)
		}
	}
	for _, f := range src.Incompatibilities {
		ok, err := evalCond(ctx, cache, f.Condition, ev)
		if err != nil {
			return metadata.PluginMetadata{}, err
		}
		if ok {
			out.Incompatibilities = append(out.Incompatibilities, f)
		}
	}
	for _, t := range src.Tags {
		ok, err := evalCond(ctx, cache, t.Condition, ev)
		if err != nil {
			return metadata.PluginMetadata{}, err
		}
		if ok {
			out.Tags = append(out.Tags, t)
		}
	}
	// Location carries no condition of its own (see metadata.Location); it
	// always survives evaluation unconditionally.
	out.Locations = append(out.Locations, src.Locations...)
	for _, m := range src.Messages {
		ok, err := evalCond(ctx, cache, m.Condition, ev)
		if err != nil {
			return metadata.PluginMetadata{}, err
		}
		if !ok {
			continue
		}
		localized := metadata.NewMessage(m.Severity, m.Localize(lang))
		out.Messages = append(out.Messages, localized)
	}

	return out, nil
}

// cacheFor extracts the condition cache from a gamestate.Game when
// possible so repeated evaluations are memoized; evaluators used only in
// tests (without a cache) fall back to per-call parsing.
func cacheFor(ev condition.Evaluator) *condition.Cache {
	if g, ok := ev.(*gamestate.Game); ok {
		return g.ConditionCache
	}
	return condition.NewCache()
}

func evalCond(ctx context.Context, cache *condition.Cache, source string, ev condition.Evaluator) (bool, error) {
	if source == "" {
		return true, nil
	}
	return cache.Evaluate(ctx, source, ev)
}

// filterDirtyInfoByCRC keeps only the cleaning entries whose CRC matches
// the installed plugin's own CRC.
func filterDirtyInfoByCRC(entries []metadata.PluginCleaningData, crc uint32) []metadata.PluginCleaningData {
	var out []metadata.PluginCleaningData
	for _, e := range entries {
		if e.CRC == crc {
			out = append(out, e)
		}
	}
	return out
}

// validityMessages implements §4.6 step 6: missing/inactive masters and
// requirements become error (active plugin) or warning (inactive plugin)
// messages, unless the plugin carries the "filter" Bash Tag — which
// suppresses only the missing-master message, per the resolved open
// question. Every incompatibility present on disk is reported regardless
// of its active state, at error severity if it is itself active and
// warning severity otherwise.
func validityMessages(g *gamestate.Game, p *gamestate.Plugin, eff metadata.PluginMetadata) []metadata.Message {
	var msgs []metadata.Message
	hasFilter := hasTag(eff.Tags, filterTag)

	sev := func() metadata.Severity {
		if p.Active {
			return metadata.SeverityError
		}
		return metadata.SeverityWarn
	}()

	for _, m := range p.Masters {
		if !pluginPresent(g, m) {
			if !hasFilter {
				msgs = append(msgs, metadata.NewMessage(sev, fmt.Sprintf("This plugin requires %q, which is missing.", m)))
			}
			continue
		}
		if !isActiveName(g, m) {
			msgs = append(msgs, metadata.NewMessage(sev, fmt.Sprintf("This plugin requires %q, which is inactive.", m)))
		}
	}
	for _, req := range eff.Requirements {
		if !pluginPresent(g, req.Name) {
			msgs = append(msgs, metadata.NewMessage(sev, fmt.Sprintf("This plugin requires %q, which is missing.", req.Name)))
		} else if !isActiveName(g, req.Name) {
			msgs = append(msgs, metadata.NewMessage(sev, fmt.Sprintf("This plugin requires %q, which is inactive.", req.Name)))
		}
	}
	for _, inc := range eff.Incompatibilities {
		if !pluginPresent(g, inc.Name) {
			continue
		}
		incSev := metadata.SeverityWarn
		if isActiveName(g, inc.Name) {
			incSev = metadata.SeverityError
		}
		msgs = append(msgs, metadata.NewMessage(incSev, fmt.Sprintf("This plugin is incompatible with %q, which is present.", inc.Name)))
	}
	return msgs
}

func cleaningMessages(dirty []metadata.PluginCleaningData) []metadata.Message {
	var msgs []metadata.Message
	for _, d := range dirty {
		utility := d.Utility
		if utility == "" {
			utility = "a cleaning utility"
		}
		msgs = append(msgs, metadata.NewMessage(metadata.SeverityWarn,
			fmt.Sprintf("This plugin needs cleaning with %s (found %d ITM record(s), %d deleted reference(s), %d deleted navmesh(es)).",
				utility, d.ITM, d.DeletedRefs, d.DeletedNavmeshes)))
	}
	return msgs
}

func hasTag(tags []metadata.Tag, name string) bool {
	for _, t := range tags {
		if t.IsAddition && strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

func pluginPresent(g *gamestate.Game, name string) bool {
	_, ok := g.Plugin(name)
	return ok
}

func isActiveName(g *gamestate.Game, name string) bool {
	p, ok := g.Plugin(name)
	return ok && p.Active
}
