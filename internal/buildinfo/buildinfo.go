// Package buildinfo exposes version data injected at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/crewkeeper/internal/buildinfo.buildVersion=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

var (
	registerOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crew_client_build_info",
			Help: "Crew client build information.",
		},
		[]string{"version", "commit"},
	)
)

// Version returns the linked version string.
func Version() string { return buildVersion }

// PrintBuildData writes the banner printed at CLI start.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", buildVersion)
	fmt.Fprintf(w, "Build date: %s\n", buildDate)
	fmt.Fprintf(w, "Build commit: %s\n", buildCommit)
}

// Register publishes crew_client_build_info{version,commit}=1 on reg. Only
// the first call registers; later calls are no-ops.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(buildInfo)
		buildInfo.WithLabelValues(buildVersion, buildCommit).Set(1)
	})
}
