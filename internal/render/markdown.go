package render

import (
	"fmt"
	"strings"

	"github.com/Lin-Jiong-HDU/qbot/internal/core"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/lookup"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/status"
)

var icons = map[core.Status]string{
	core.StatusOK:                   "✅",
	core.StatusFailed:               "❌",
	core.StatusUnauthorized:         "🚫",
	core.StatusRejected:             "⚠️",
	core.StatusAwaitingConfirmation: "⚠️",
	core.StatusAborted:              "❌",
	core.StatusExpired:              "⌛",
	core.StatusTimedOut:             "❌",
	core.StatusBusy:                 "⏳",
}

// Icon returns the marker shown in front of a response.
func Icon(s core.Status) string {
	if icon, ok := icons[s]; ok {
		return icon
	}
	return "•"
}

// Markdown renders resp as markdown.
func Markdown(resp *core.Response) string {
	var b strings.Builder

	switch {
	case resp.Lookup != nil:
		writeLookup(&b, resp.Lookup)
	case resp.Report != nil:
		writeReport(&b, resp.Report)
	default:
		fmt.Fprintf(&b, "%s **%s**\n", Icon(resp.Status), resp.Message)
	}

	if resp.Detail != "" && resp.Status != core.StatusAwaitingConfirmation {
		fmt.Fprintf(&b, "\n```\n%s\n```\n", strings.TrimRight(resp.Detail, "\r\n"))
	}
	return b.String()
}

func writeLookup(b *strings.Builder, r *lookup.Result) {
	b.WriteString("## Port Watcher\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(b, "| **IP** | %s |\n", r.IP)
	fmt.Fprintf(b, "| **Port** | %s |\n", r.Port)
	fmt.Fprintf(b, "| **QDRIVE Status** | %s |\n", r.Status())
}

func writeReport(b *strings.Builder, r *status.Report) {
	b.WriteString("## 📊 QDRIVE Dual-Storage Report\n\n")
	b.WriteString("### Storage Levels\n\n")
	for _, d := range r.Disks {
		fmt.Fprintf(b, "- %s\n", d.String())
	}

	if len(r.Services) > 0 {
		b.WriteString("\n### Watchdog Status\n\n")
		for _, s := range r.Services {
			fmt.Fprintf(b, "- %s: %s %s\n", s.Name, serviceIcon(s), s.State())
		}
	}
}

func serviceIcon(s status.ServiceStatus) string {
	switch s.State() {
	case "ALIVE":
		return "🟢"
	case "DEAD":
		return "🔴"
	default:
		return "⚪"
	}
}
