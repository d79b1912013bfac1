package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"k2ledger/internal/model"
)

// GridLimit is the largest id list printed in full under a single-campaign table.
const GridLimit = 25

const gridColumns = 4

type palette struct {
	plain lipgloss.Style
	green lipgloss.Style
	blue  lipgloss.Style
	red   lipgloss.Style
}

// newPalette binds colours to the destination writer so files and pipes stay plain.
func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	return palette{
		plain: r.NewStyle(),
		green: r.NewStyle().Foreground(lipgloss.Color("2")),
		blue:  r.NewStyle().Foreground(lipgloss.Color("4")),
		red:   r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// Status writes the campaign progress table. When exactly one summary is given the
// remaining and errored ids are listed below it if there are at most GridLimit of each.
func Status(w io.Writer, summaries []model.CampaignSummary) error {
	p := newPalette(w)
	var b strings.Builder
	b.WriteString("CAMP      TOTAL      DOWNLOADED    PROCESSED      FITS    ERRORS\n")
	b.WriteString("----      -----      ----------    ---------      ----    ------\n")
	for _, s := range summaries {
		if s.Total == 0 {
			continue
		}
		b.WriteString(statusRow(p, s))
		b.WriteString("\n")
		if len(summaries) != 1 {
			continue
		}
		if n := len(s.RemainingIDs); n > 0 && n <= GridLimit {
			writeGrid(&b, "REMAIN:", s.RemainingIDs)
		}
		if n := len(s.ErroredIDs); n > 0 && n <= GridLimit {
			writeGrid(&b, "ERRORS:", s.ErroredIDs)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func statusRow(p palette, s model.CampaignSummary) string {
	camp, total, down, proc, errs := p.plain, p.plain, p.plain, p.plain, p.plain
	if s.Processed == s.Total {
		camp, total, proc, errs = p.green, p.green, p.green, p.green
		if s.Downloaded >= s.Total {
			down = p.green
		}
	} else {
		if s.Downloaded >= s.Total {
			down = p.blue
		}
		if s.Processed > 0 && s.Processed >= s.Downloaded {
			proc = p.blue
		}
		if s.Errored > 0 {
			errs = p.red
		}
	}
	fits := p.plain
	if s.Published >= s.Total {
		fits = p.green
	}

	return camp.Render(fmt.Sprintf("%4s   ", s.Campaign)) +
		total.Render(fmt.Sprintf("%8d", s.Total)) +
		down.Render(fmt.Sprintf("%16d", s.Downloaded)) +
		proc.Render(fmt.Sprintf("%13d", s.Processed)) +
		fits.Render(fmt.Sprintf("%10d", s.Published)) +
		errs.Render(fmt.Sprintf("%10d", s.Errored))
}

func writeGrid(b *strings.Builder, label string, ids []string) {
	b.WriteString("\n")
	for i := 0; i < len(ids); i += gridColumns {
		row := make([]string, gridColumns)
		for j := range row {
			row[j] = strings.Repeat(" ", 9)
			if i+j < len(ids) {
				row[j] = ids[i+j]
			}
		}
		lead := strings.Repeat(" ", len(label))
		if i == 0 {
			lead = label
		}
		fmt.Fprintf(b, "%s  %s\n\n", lead, strings.Join(row, "   "))
	}
}
