package sema

import (
	"context"
	"sort"

	"pythia/internal/diag"
	"pythia/internal/source"
	"pythia/internal/types"
)

// checkOverrides verifies that every member redefined in a class is
// assignable to what each base in MRO order declares. Reporting stops
// at the first violated base per member; remaining bases would mostly
// repeat the same mismatch.
// TODO: revisit whether independent violations against later bases
// deserve their own diagnostics.
func (c *Checker) checkOverrides(ctx context.Context, cls types.ClassID) {
	ti := c.env.Types
	info, ok := ti.ClassInfo(cls)
	if !ok || len(info.Members) == 0 {
		return
	}
	mro := ti.MRO(cls)
	if len(mro) < 2 {
		return
	}

	type entry struct {
		name   source.StringID
		member types.Member
	}
	ordered := make([]entry, 0, len(info.Members))
	for name, member := range info.Members {
		ordered = append(ordered, entry{name: name, member: member})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].member.Decl.Start != ordered[j].member.Decl.Start {
			return ordered[i].member.Decl.Start < ordered[j].member.Decl.Start
		}
		return ordered[i].name < ordered[j].name
	})

	for _, e := range ordered {
		if ctx.Err() != nil {
			return
		}
		for _, base := range mro[1:] {
			baseInfo, ok := ti.ClassInfo(base)
			if !ok {
				continue
			}
			inherited, ok := baseInfo.Members[e.name]
			if !ok {
				continue
			}
			// сигнатуры сравниваются без receiver-параметра
			if ti.Assignable(c.bindMethod(e.member.Type), c.bindMethod(inherited.Type)) {
				continue
			}
			c.reporter.Report(diag.SemaBadOverride, diag.SevError, e.member.Decl,
				"override of \""+c.env.Strings.MustLookup(e.name)+"\" is not assignable to the definition in \""+
					c.env.Strings.MustLookup(baseInfo.Name)+"\"",
				[]diag.Note{{Span: inherited.Decl, Msg: "overridden definition is here"}})
			break
		}
	}
}
