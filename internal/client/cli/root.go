package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/crewkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/crewkeeper/internal/client/services"
)

func (a *App) getStatus() string {
	var parts []string
	if p := a.session.Profile(); p != nil {
		parts = append(parts, p.CrewID)
	}
	if a.gate != nil {
		parts = append(parts, a.gate.Snapshot().State.String())
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}

// Root prints the banner, starts connectivity monitoring, restores the
// stored session and hands control to the REPL.
func (a *App) Root(ctx context.Context) {
	a.println("Crew CLI (type 'help' for commands)")
	buildinfo.PrintBuildData(a.out)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.run != nil {
		go a.run(ctx)
	}

	if err := a.session.Start(ctx); err != nil {
		a.printErr("Could not restore session", err)
	}
	if a.session.State() == services.SessionAuthenticated {
		if p := a.session.Profile(); p != nil {
			a.printf("Signed in as %s (%s)\n", p.FullName(), p.CrewID)
		}
	}

	runREPL(ctx, a, a.getStatus, a.reader)
	a.session.Wait()
}

// Stats prints gateway call counters and build info gathered from the
// app's metric registry.
func (a *App) Stats(_ context.Context) error {
	if a.metrics == nil {
		a.println("No metrics collected")
		return nil
	}
	families, err := a.metrics.Gather()
	if err != nil {
		a.printErr("Could not read metrics", err)
		return err
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		a.println("No metrics collected")
		return nil
	}
	for _, l := range lines {
		a.println(l)
	}
	return nil
}
