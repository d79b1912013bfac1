package campaign

import (
	"fmt"
	"strconv"
	"strings"
)

// Whole marks an ID that covers every decile of its campaign.
const Whole = -1

const (
	// DecileCount is the number of subcampaigns an integer campaign splits into.
	DecileCount = 10
	// DefaultLast is the last campaign scanned when no campaign is requested.
	DefaultLast = 17
)

// ID names a K2 campaign, or one decile ("subcampaign") of it.
type ID struct {
	Number int
	Sub    int
}

func New(number int) ID {
	return ID{Number: number, Sub: Whole}
}

func NewDecile(number, sub int) ID {
	return ID{Number: number, Sub: sub}
}

func (id ID) IsDecile() bool {
	return id.Sub != Whole
}

func (id ID) String() string {
	if id.IsDecile() {
		return fmt.Sprintf("%d.%d", id.Number, id.Sub)
	}
	return strconv.Itoa(id.Number)
}

// Dir is the campaign directory name. Deciles share their campaign's directory.
func (id ID) Dir() string {
	return fmt.Sprintf("c%02d", id.Number)
}

// Label renders the id the way queue job names and log files expect it: c05 or c05.3.
func (id ID) Label() string {
	if id.IsDecile() {
		return fmt.Sprintf("c%02d.%d", id.Number, id.Sub)
	}
	return fmt.Sprintf("c%02d", id.Number)
}

func (id ID) JobName(prefix string) string {
	return prefix + id.Label()
}

// Deciles expands a whole campaign into its ten subcampaigns. A decile expands to itself.
func (id ID) Deciles() []ID {
	if id.IsDecile() {
		return []ID{id}
	}
	out := make([]ID, 0, DecileCount)
	for n := 0; n < DecileCount; n++ {
		out = append(out, NewDecile(id.Number, n))
	}
	return out
}

// Parse accepts "5" (whole campaign) or "5.3" (decile 3 of campaign 5).
func Parse(raw string) (ID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ID{}, fmt.Errorf("campaign is required")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	n, err := strconv.Atoi(whole)
	if err != nil || n < 0 {
		return ID{}, fmt.Errorf("invalid campaign %q", raw)
	}
	if !hasFrac {
		return New(n), nil
	}
	if len(frac) != 1 || frac[0] < '0' || frac[0] > '9' {
		return ID{}, fmt.Errorf("invalid campaign %q (decile must be a single digit)", raw)
	}
	return NewDecile(n, int(frac[0]-'0')), nil
}

// ParseList accepts comma separated ids and inclusive integer ranges ("0-17").
func ParseList(raw string) ([]ID, error) {
	out := make([]ID, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err1 := strconv.Atoi(strings.TrimSpace(lo))
			to, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || from < 0 || to < from {
				return nil, fmt.Errorf("invalid campaign range %q", part)
			}
			for n := from; n <= to; n++ {
				out = append(out, New(n))
			}
			continue
		}
		id, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no campaigns in %q", raw)
	}
	return out, nil
}

// All returns campaigns 0..DefaultLast.
func All() []ID {
	out := make([]ID, 0, DefaultLast+1)
	for n := 0; n <= DefaultLast; n++ {
		out = append(out, New(n))
	}
	return out
}
