package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"k2ledger/internal/model"
)

// MaskLabel renders the mask flag the way the table prints it.
func MaskLabel(masked bool) string {
	if masked {
		return "T"
	}
	return "F"
}

func Injection(w io.Writer, rows []model.InjectionSummary) error {
	p := newPalette(w)
	var b strings.Builder
	b.WriteString("CAMP      MASK       DEPTH     TOTAL      DONE     ERRORS\n")
	b.WriteString("----      ----       -----     -----      ----     ------\n")
	for _, r := range rows {
		if r.Total == 0 {
			continue
		}
		row := p.plain
		if r.Done == r.Total {
			row = p.green
		}
		errs := p.plain
		if r.Errored > 0 {
			errs = p.red
		}
		b.WriteString(row.Render(fmt.Sprintf("%4s%8s%14s%10d%10d",
			r.Campaign, MaskLabel(r.Masked), strconv.FormatFloat(r.Depth, 'g', -1, 64), r.Total, r.Done)))
		b.WriteString(errs.Render(fmt.Sprintf("%9d", r.Errored)))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
