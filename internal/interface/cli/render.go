// Package cli renders tier reports and santri lists for the terminal.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/almuhajirin/hafalan-hub/internal/application/report"
	"github.com/almuhajirin/hafalan-hub/internal/domain/clustering"
	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C0C0C0")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))

	tierColors = map[string]lipgloss.Color{
		clustering.LabelTop:          lipgloss.Color("#52C41A"),
		clustering.LabelMid:          lipgloss.Color("#FAAD14"),
		clustering.LabelNeedsSupport: lipgloss.Color("#FF4D4F"),
	}
)

// TierStyle returns the colour style of a tier label.
func TierStyle(label string) lipgloss.Style {
	if c, ok := tierColors[label]; ok {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#69B1FF"))
}

// RenderReport writes a tier report as a table followed by tier counts.
func RenderReport(w io.Writer, rep *report.Report) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Laporan hafalan %s (%s)", rep.Selector.Period.String(), rep.Selector.Granularity)))
	b.WriteString("\n")
	meta := fmt.Sprintf("k=%d  fitur=%s  santri=%d  inertia=%.3f", rep.K, rep.FeatureSet, rep.Students, rep.Inertia)
	if rep.Silhouette != nil {
		meta += fmt.Sprintf("  silhouette=%.3f", *rep.Silhouette)
	}
	b.WriteString(mutedStyle.Render(meta))
	b.WriteString("\n")
	if n := len(rep.Screening.Dropped); n > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d baris dibuang saat penyaringan", n)))
		b.WriteString("\n")
	}

	rows := make([][]string, 0, len(rep.Rows))
	labels := make([]string, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		rows = append(rows, []string{
			r.StudentName,
			strconv.Itoa(r.RecordCount),
			formatFloat(r.WeightedMemorized),
			formatFloat(r.WeightedSubmitted),
			formatScore(r.FluencyTotal),
			fmt.Sprintf("%.0f%%", r.AttendanceRate*100),
			r.Label,
		})
		labels = append(labels, r.Label)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("Santri", "Setoran", "Hafalan", "Disetor", "Kelancaran", "Hadir", "Tingkat").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 6 && row >= 0 && row < len(labels) {
				return TierStyle(labels[row]).Padding(0, 1)
			}
			return cellStyle
		})
	b.WriteString(t.Render())
	b.WriteString("\n")

	for _, tc := range rep.TierCounts {
		b.WriteString(TierStyle(tc.Label).Render(fmt.Sprintf("%-14s", tc.Label)))
		b.WriteString(fmt.Sprintf(" %d\n", tc.Count))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderStudents writes the santri list.
func RenderStudents(w io.Writer, students []hafalan.Santri) error {
	rows := make([][]string, 0, len(students))
	for _, s := range students {
		rows = append(rows, []string{s.Name, string(s.Gender)})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("Nama", "Gender").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatScore(s hafalan.Score) string {
	if !s.Valid {
		return "-"
	}
	return formatFloat(s.Value)
}
