package metadata

// MergeMetadata folds src into p, returning the result. If src carries no
// payload (HasNameOnly), the merge is a no-op. Otherwise: Enabled and —
// only if src's priorities are explicit — LocalPriority/GlobalPriority are
// taken from src; every set-typed field gains src's elements that are not
// already present by that field's own equality; Messages (a list, not a
// set) has every one of src's entries appended. Later-merged metadata
// never downgrades an existing entry, and because set equality ignores
// condition/display payload, the first-inserted copy's payload wins.
func (p PluginMetadata) MergeMetadata(src PluginMetadata) PluginMetadata {
	if src.HasNameOnly() {
		return p
	}

	out := p
	out.Enabled = src.Enabled

	if src.LocalPriority.Explicit {
		out.LocalPriority = src.LocalPriority
	}
	if src.GlobalPriority.Explicit {
		out.GlobalPriority = src.GlobalPriority
	}

	out.LoadAfter = mergeFiles(out.LoadAfter, src.LoadAfter)
	out.Requirements = mergeFiles(out.Requirements, src.Requirements)
	out.Incompatibilities = mergeFiles(out.Incompatibilities, src.Incompatibilities)
	out.Tags = mergeTags(out.Tags, src.Tags)
	out.DirtyInfo = mergeCleaning(out.DirtyInfo, src.DirtyInfo)
	out.CleanInfo = mergeCleaning(out.CleanInfo, src.CleanInfo)
	out.Locations = mergeLocations(out.Locations, src.Locations)

	out.Messages = append(append([]Message{}, out.Messages...), src.Messages...)

	return out
}

func mergeFiles(dst, src []File) []File {
	seen := make(map[string]struct{}, len(dst))
	for _, f := range dst {
		seen[f.key()] = struct{}{}
	}
	out := append([]File{}, dst...)
	for _, f := range src {
		if _, ok := seen[f.key()]; ok {
			continue
		}
		seen[f.key()] = struct{}{}
		out = append(out, f)
	}
	return out
}

func mergeTags(dst, src []Tag) []Tag {
	seen := make(map[string]struct{}, len(dst))
	for _, t := range dst {
		seen[t.key()] = struct{}{}
	}
	out := append([]Tag{}, dst...)
	for _, t := range src {
		if _, ok := seen[t.key()]; ok {
			continue
		}
		seen[t.key()] = struct{}{}
		out = append(out, t)
	}
	return out
}

func mergeCleaning(dst, src []PluginCleaningData) []PluginCleaningData {
	seen := make(map[uint32]struct{}, len(dst))
	for _, c := range dst {
		seen[c.CRC] = struct{}{}
	}
	out := append([]PluginCleaningData{}, dst...)
	for _, c := range src {
		if _, ok := seen[c.CRC]; ok {
			continue
		}
		seen[c.CRC] = struct{}{}
		out = append(out, c)
	}
	return out
}

func mergeLocations(dst, src []Location) []Location {
	seen := make(map[string]struct{}, len(dst))
	for _, l := range dst {
		seen[l.key()] = struct{}{}
	}
	out := append([]Location{}, dst...)
	for _, l := range src {
		if _, ok := seen[l.key()]; ok {
			continue
		}
		seen[l.key()] = struct{}{}
		out = append(out, l)
	}
	return out
}

// DiffMetadata produces a new PluginMetadata holding the symmetric
// difference, in every set-typed field, of p and src, and the
// list-symmetric-difference of Messages (duplicates counted as an ordered
// multiset: an element present n times in one side and m times in the
// other contributes |n-m| copies). Priority is zeroed and marked
// non-explicit if p and src agree, else p's own value is kept.
func (p PluginMetadata) DiffMetadata(src PluginMetadata) PluginMetadata {
	out := PluginMetadata{Name: p.Name, IsRegex: p.IsRegex, CompiledRegex: p.CompiledRegex, Enabled: p.Enabled}

	out.LocalPriority = diffPriority(p.LocalPriority, src.LocalPriority)
	out.GlobalPriority = diffPriority(p.GlobalPriority, src.GlobalPriority)

	out.LoadAfter = symDiffFiles(p.LoadAfter, src.LoadAfter)
	out.Requirements = symDiffFiles(p.Requirements, src.Requirements)
	out.Incompatibilities = symDiffFiles(p.Incompatibilities, src.Incompatibilities)
	out.Tags = symDiffTags(p.Tags, src.Tags)
	out.DirtyInfo = symDiffCleaning(p.DirtyInfo, src.DirtyInfo)
	out.CleanInfo = symDiffCleaning(p.CleanInfo, src.CleanInfo)
	out.Locations = symDiffLocations(p.Locations, src.Locations)
	out.Messages = symDiffMessagesMultiset(p.Messages, src.Messages)

	return out
}

// NewMetadata is like DiffMetadata but uses plain set difference (p − src)
// rather than symmetric difference: "what in the user overlay is not
// already implied by the masterlist."
func (p PluginMetadata) NewMetadata(src PluginMetadata) PluginMetadata {
	out := PluginMetadata{Name: p.Name, IsRegex: p.IsRegex, CompiledRegex: p.CompiledRegex, Enabled: p.Enabled}

	out.LocalPriority = diffPriority(p.LocalPriority, src.LocalPriority)
	out.GlobalPriority = diffPriority(p.GlobalPriority, src.GlobalPriority)

	out.LoadAfter = diffFiles(p.LoadAfter, src.LoadAfter)
	out.Requirements = diffFiles(p.Requirements, src.Requirements)
	out.Incompatibilities = diffFiles(p.Incompatibilities, src.Incompatibilities)
	out.Tags = diffTags(p.Tags, src.Tags)
	out.DirtyInfo = diffCleaning(p.DirtyInfo, src.DirtyInfo)
	out.CleanInfo = diffCleaning(p.CleanInfo, src.CleanInfo)
	out.Locations = diffLocations(p.Locations, src.Locations)
	out.Messages = diffMessagesMultiset(p.Messages, src.Messages)

	return out
}

func diffPriority(a, b Priority) Priority {
	if a == b {
		return Priority{}
	}
	return a
}

func diffFiles(a, b []File) []File {
	inB := make(map[string]struct{}, len(b))
	for _, f := range b {
		inB[f.key()] = struct{}{}
	}
	var out []File
	for _, f := range a {
		if _, ok := inB[f.key()]; !ok {
			out = append(out, f)
		}
	}
	return out
}

func symDiffFiles(a, b []File) []File {
	out := diffFiles(a, b)
	out = append(out, diffFiles(b, a)...)
	return out
}

func diffTags(a, b []Tag) []Tag {
	inB := make(map[string]struct{}, len(b))
	for _, t := range b {
		inB[t.key()] = struct{}{}
	}
	var out []Tag
	for _, t := range a {
		if _, ok := inB[t.key()]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func symDiffTags(a, b []Tag) []Tag {
	out := diffTags(a, b)
	out = append(out, diffTags(b, a)...)
	return out
}

func diffCleaning(a, b []PluginCleaningData) []PluginCleaningData {
	inB := make(map[uint32]struct{}, len(b))
	for _, c := range b {
		inB[c.CRC] = struct{}{}
	}
	var out []PluginCleaningData
	for _, c := range a {
		if _, ok := inB[c.CRC]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func symDiffCleaning(a, b []PluginCleaningData) []PluginCleaningData {
	out := diffCleaning(a, b)
	out = append(out, diffCleaning(b, a)...)
	return out
}

func diffLocations(a, b []Location) []Location {
	inB := make(map[string]struct{}, len(b))
	for _, l := range b {
		inB[l.key()] = struct{}{}
	}
	var out []Location
	for _, l := range a {
		if _, ok := inB[l.key()]; !ok {
			out = append(out, l)
		}
	}
	return out
}

func symDiffLocations(a, b []Location) []Location {
	out := diffLocations(a, b)
	out = append(out, diffLocations(b, a)...)
	return out
}

// diffMessagesMultiset returns the entries of a whose count in a exceeds
// their count in b, each repeated by that excess — an ordered multiset
// difference, preserving a's original order.
func diffMessagesMultiset(a, b []Message) []Message {
	remaining := make([]Message, len(b))
	copy(remaining, b)

	var out []Message
	for _, m := range a {
		idx := -1
		for i, r := range remaining {
			if m.equal(r) {
				idx = i
				break
			}
		}
		if idx >= 0 {
			remaining = append(remaining[:idx], remaining[idx+1:]...)
			continue
		}
		out = append(out, m)
	}
	return out
}

func symDiffMessagesMultiset(a, b []Message) []Message {
	out := diffMessagesMultiset(a, b)
	out = append(out, diffMessagesMultiset(b, a)...)
	return out
}
