package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"k2ledger/internal/model"
)

func TestStatusRowsAndSkipsEmptyCampaigns(t *testing.T) {
	var buf bytes.Buffer
	err := Status(&buf, []model.CampaignSummary{
		{Campaign: "0", Total: 0},
		{Campaign: "5", Total: 10, Downloaded: 9, Processed: 4, Published: 2, Errored: 1,
			RemainingIDs: []string{"201000001"}, ErroredIDs: []string{"201000002"}},
		{Campaign: "12", Total: 3, Downloaded: 3, Processed: 3, Published: 3},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "CAMP"))
	require.Equal(t, "   5         10               9            4         2         1", lines[2])
	require.Equal(t, "  12          3               3            3         3         0", lines[3])
	// grids only appear for a single campaign
	require.NotContains(t, buf.String(), "REMAIN:")
}

func TestStatusSingleCampaignGrids(t *testing.T) {
	remaining := []string{"201000001", "201000002", "201000003", "201000004", "201000005"}
	var buf bytes.Buffer
	err := Status(&buf, []model.CampaignSummary{{
		Campaign:     "5.3",
		Decile:       true,
		Total:        7,
		Errored:      2,
		RemainingIDs: remaining,
		ErroredIDs:   []string{"201000006", "201000007"},
	}})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, " 5.3   ")
	require.Contains(t, out, "REMAIN:  201000001   201000002   201000003   201000004\n")
	require.Contains(t, out, "         201000005                                    \n")
	require.Contains(t, out, "ERRORS:  201000006   201000007                        \n")
}

func TestStatusGridThreshold(t *testing.T) {
	ids := make([]string, GridLimit+1)
	for i := range ids {
		ids[i] = "201000000"
	}
	var buf bytes.Buffer
	require.NoError(t, Status(&buf, []model.CampaignSummary{{Campaign: "1", Total: len(ids), RemainingIDs: ids}}))
	require.NotContains(t, buf.String(), "REMAIN:")

	buf.Reset()
	require.NoError(t, Status(&buf, []model.CampaignSummary{{Campaign: "1", Total: GridLimit, RemainingIDs: ids[:GridLimit]}}))
	require.Contains(t, buf.String(), "REMAIN:")
}

func TestInjectionTable(t *testing.T) {
	var buf bytes.Buffer
	err := Injection(&buf, []model.InjectionSummary{
		{Campaign: "6", Masked: false, Depth: 0.01, Total: 3, Done: 2},
		{Campaign: "6", Masked: true, Depth: 0.0001, Total: 3, Done: 1, Errored: 1},
		{Campaign: "7", Total: 0},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "   6       F          0.01         3         2        0", lines[2])
	require.Equal(t, "   6       T        0.0001         3         1        1", lines[3])
}
