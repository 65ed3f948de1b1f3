package shrinker

import (
	"github.com/class-shrinker/pkg/model"
)

// Report converts the result into the JSON run report.
func (res *Result) Report(version string) *model.Report {
	rep := model.NewReport(version)
	rep.Incremental = res.Incremental
	rep.Written = append(rep.Written, res.Written...)
	rep.Deleted = res.Deleted

	for cs, n := range res.Reachable {
		rep.Reachable[cs.String()] = n
	}
	for _, d := range res.Diagnostics {
		rep.Diagnostics = append(rep.Diagnostics, model.Diagnostic{
			Kind:   string(d.Kind),
			From:   d.From,
			Target: d.Target,
		})
	}
	for node, trace := range res.Traces {
		kt := model.KeepTrace{Target: res.Graph.FullName(node)}
		for _, step := range trace.Steps() {
			kt.Steps = append(kt.Steps, model.TraceStep{
				Node:       res.Graph.FullName(step.Node),
				Dependency: step.Type.String(),
			})
		}
		rep.Traces = append(rep.Traces, kt)
	}
	rep.SortTraces()

	for _, p := range res.Timings {
		rep.AddTiming(p.Name, p.Duration)
	}
	return rep
}
