package market

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/novus/internal/models"
)

// NavSeries converts registry NAV rows ("dd-mm-yyyy", newest first) into an
// ascending price series. Rows with a malformed date or a non-positive NAV
// are dropped.
func NavSeries(rows []models.NavRow) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(rows))
	for _, r := range rows {
		parts := strings.Split(strings.TrimSpace(r.Date), "-")
		if len(parts) != 3 {
			continue
		}
		d, errD := strconv.Atoi(parts[0])
		m, errM := strconv.Atoi(parts[1])
		y, errY := strconv.Atoi(parts[2])
		if errD != nil || errM != nil || errY != nil || !finitePositive(r.NAV) {
			continue
		}
		ts := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).UnixMilli()
		out = append(out, models.PricePoint{Timestamp: ts, Price: r.NAV})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
