// Package sorter is the façade (C8) that orchestrates every other
// component into one call: load installed plugins, merge and evaluate
// their metadata, build the dependency graph, and return the resulting
// load order. Grounded on spec.md §4.8 and, for its orchestration shape
// (refresh state, fan out per-item work, assemble one result, log with a
// per-call correlation id), on the teacher's internal/conflict detector
// methods and cmd/server's per-request uuid-tagged logging.
package sorter

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pluginsort/core/internal/apperr"
	"github.com/pluginsort/core/internal/gamestate"
	"github.com/pluginsort/core/internal/graph"
	"github.com/pluginsort/core/internal/mergeeval"
	"github.com/pluginsort/core/internal/metadata"
)

// PluginResult is the effective metadata and final position computed for
// one installed plugin.
type PluginResult struct {
	Name      string
	Position  int
	Effective metadata.PluginMetadata
}

// Result is the outcome of one Sort call.
type Result struct {
	// CorrelationID identifies this call across log lines, per call.
	CorrelationID string

	// Order is the final load order, masters-first, one name per entry.
	Order []string

	// Plugins is Order's per-plugin detail, in the same order.
	Plugins []PluginResult

	// GlobalMessages are the masterlist/userlist's global messages, copied
	// without evaluating their conditions, plus any graph Warnings surfaced
	// as warning-severity messages.
	GlobalMessages []metadata.Message
}

// Options configures one Sort call.
type Options struct {
	// Language selects which MessageContent to surface; falls back to
	// English per invariant M1.
	Language string
	// HeadersOnly skips the record-level parse (FormIDs, override count,
	// CRC) for every plugin loaded by this call — callers that only need
	// names/masters/priority can set this.
	HeadersOnly bool
}

// Sort runs the full pipeline against g's currently-installed plugins and
// returns their new load order. g must already have Masterlist/Userlist
// populated (nil is a valid, empty list) and LoadOrder initialized.
func Sort(ctx context.Context, g *gamestate.Game, opts Options) (*Result, error) {
	correlationID := uuid.NewString()
	logger := g.Logger.With("correlation_id", correlationID)

	lang := opts.Language
	if lang == "" {
		lang = metadata.LanguageEnglish
	}

	if err := g.RefreshActivePlugins(ctx); err != nil {
		return nil, apperr.Wrap(apperr.LoadOrderLibrary, "refresh active plugins", err)
	}

	names := g.LoadOrderNames()
	logger.InfoContext(ctx, "sorting load order", "plugin_count", len(names))

	if err := g.LoadPlugins(ctx, names, opts.HeadersOnly); err != nil {
		logger.WarnContext(ctx, "some plugins failed to load", "error", err)
	}

	var globalMessages []metadata.Message
	if g.Masterlist != nil {
		globalMessages = append(globalMessages, g.Masterlist.Globals...)
	}
	if g.Userlist != nil {
		globalMessages = append(globalMessages, g.Userlist.Globals...)
	}

	nodes := make([]graph.PluginNode, 0, len(names))
	results := make(map[string]PluginResult, len(names))
	for _, name := range names {
		p, ok := g.Plugin(name)
		if !ok {
			logger.WarnContext(ctx, "plugin in load order failed to load, excluding from graph", "plugin", name)
			continue
		}

		eff, err := mergeeval.Evaluate(ctx, g, p, lang)
		if err != nil {
			return nil, apperr.Wrap(apperr.ConditionEvalFail, "evaluate metadata for "+name, err)
		}
		p.Effective = eff

		nodes = append(nodes, graph.PluginNode{
			Name:                p.Filename,
			IsMaster:            p.IsMaster,
			Masters:             p.Masters,
			RecordIDs:           p.RecordIDs,
			OverrideRecordCount: p.OverrideRecordCount,
			Effective:           eff,
		})
		results[p.Lowercased] = PluginResult{Name: p.Filename, Effective: eff}
	}

	built, err := graph.Build(nodes, names)
	if err != nil {
		return nil, err
	}

	for i, name := range built.Order {
		key := lowerKey(name)
		r := results[key]
		r.Name = name
		r.Position = i
		results[key] = r
	}

	plugins := make([]PluginResult, len(built.Order))
	for i, name := range built.Order {
		plugins[i] = results[lowerKey(name)]
	}

	for _, w := range built.Warnings {
		globalMessages = append(globalMessages, metadata.NewMessage(metadata.SeverityWarn, w))
	}

	logger.InfoContext(ctx, "sort complete", "final_count", len(built.Order), "warning_count", len(built.Warnings))

	return &Result{
		CorrelationID:  correlationID,
		Order:          built.Order,
		Plugins:        plugins,
		GlobalMessages: globalMessages,
	}, nil
}

func lowerKey(name string) string {
	return strings.ToLower(name)
}

// ApplyLoadOrder persists result's order back through g's load-order
// handler — the write-back half of a sort-then-apply workflow.
func ApplyLoadOrder(ctx context.Context, g *gamestate.Game, result *Result) error {
	if err := g.LoadOrder.SetLoadOrder(ctx, result.Order); err != nil {
		return apperr.Wrap(apperr.LoadOrderLibrary, "apply sorted load order", err)
	}
	return nil
}

// MessagesBySeverity partitions a result's global plus per-plugin messages
// by severity, for callers (the CLI, the HTTP API) that want summary
// counts without walking the structure themselves.
func MessagesBySeverity(result *Result) map[metadata.Severity]int {
	counts := make(map[metadata.Severity]int)
	for _, m := range result.GlobalMessages {
		counts[m.Severity]++
	}
	for _, p := range result.Plugins {
		for _, m := range p.Effective.Messages {
			counts[m.Severity]++
		}
	}
	return counts
}

// Summary renders a short human-readable line about result, used by the
// CLI's default (non-verbose) output.
func Summary(result *Result) string {
	counts := MessagesBySeverity(result)
	return fmt.Sprintf("%d plugins sorted, %d error(s), %d warning(s) [%s]",
		len(result.Order), counts[metadata.SeverityError], counts[metadata.SeverityWarn], result.CorrelationID)
}
