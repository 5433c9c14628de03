package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"affinity-warden/internal/coreset"
	"affinity-warden/internal/topology"
)

// Summary is the fixed startup layout shown before and during monitoring.
type Summary struct {
	TotalCPUs   int
	MainCores   coreset.CoreSet
	WorkerCores coreset.CoreSet
	MainNames   string
	WorkerNames string
	Interval    time.Duration
	Warnings    []string
}

func PrintTopology(topo *topology.CPUTopology) {
	if topo == nil {
		fmt.Println(errorBoxStyle.Render("CPU topology unavailable"))
		return
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("CPU Topology"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %s %d    %s %d    %s %s    %s %s\n\n",
		groupStyle.Render("Cores:"), topo.TotalCores,
		workerStyle.Render("CPUs:"), topo.TotalCPUs,
		dimStyle.Render("SMT:"), formatBoolDisplay(topo.HasSMT),
		dimStyle.Render("Method:"), highlightStyle.Render(topo.DetectMethod)))

	for i, cg := range topo.CoreGroups {
		prefix := "├─"
		if i == len(topo.CoreGroups)-1 {
			prefix = "└─"
		}
		l3Info := ""
		if cg.L3CacheID >= 0 {
			l3Info = dimStyle.Render(fmt.Sprintf(" [pkg %d, L3#%d]", cg.PackageID, cg.L3CacheID))
		}
		b.WriteString(fmt.Sprintf("  %s %s%s  ", prefix, groupStyle.Render(cg.Name), l3Info))
		b.WriteString(okStyle.Render(cg.PhysicalCPUs.Format()))
		b.WriteString(dimStyle.Render(" / "))
		b.WriteString(workerStyle.Render(cg.AllCPUs.Format()))
		b.WriteString("\n")
	}

	fmt.Println(boxStyle.Render(b.String()))
}

// PrintStartup writes the core layout banner to stdout.
func PrintStartup(s Summary) {
	fmt.Println(RenderSummary(s))
	for _, w := range s.Warnings {
		fmt.Println(warningBoxStyle.Render("! " + w))
	}
}

func RenderSummary(s Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("CPU Affinity Warden"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %s %d    %s %s\n", dimStyle.Render("Total cores:"), s.TotalCPUs,
		dimStyle.Render("Interval:"), s.Interval))
	b.WriteString(fmt.Sprintf("  %s %s  %s\n", mainStyle.Render("Main   "), formatCores(s.MainCores),
		dimStyle.Render(s.MainNames)))
	b.WriteString(fmt.Sprintf("  %s %s  %s", workerStyle.Render("Workers"), formatCores(s.WorkerCores),
		dimStyle.Render(s.WorkerNames)))
	return boxStyle.Render(b.String())
}

func PrintError(err error) {
	content := fmt.Sprintf("✗ Error: %v", err)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, errorBoxStyle.Render(content))
	fmt.Fprintln(os.Stderr)
}

// PrintNotice shows an operator-facing message on stderr.
func PrintNotice(message string) {
	writeNotice(os.Stderr, message)
}

func writeNotice(w io.Writer, message string) {
	fmt.Fprintln(w, warningBoxStyle.Render(message))
}

func formatCores(cores coreset.CoreSet) string {
	if len(cores) == 0 {
		return failStyle.Render("none")
	}
	return highlightStyle.Render(cores.Format())
}

func formatBoolDisplay(b bool) string {
	if b {
		return okStyle.Render("Yes")
	}
	return dimStyle.Render("No")
}
