package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/trip-control-api/internal/models"
)

// DefaultTolerance is the start-time window within which two trips count as on time.
const DefaultTolerance = 5 * time.Minute

// MatchOptions tunes the reconciliation engine.
type MatchOptions struct {
	Tolerance time.Duration
}

// MatchedPair is one classified outcome of the engine; at least one side is set.
type MatchedPair struct {
	LineCode              string
	Transdata             *models.TransdataTrip
	Globus                *models.GlobusTrip
	ServiceCompatible     bool
	DirectionCompatible   bool
	TimeCompatible        bool
	TimeDifferenceMinutes *int
	Status                models.ComparisonStatus
}

// RunCounts is the roll-up of one engine pass.
type RunCounts struct {
	Total                int
	Compatible           int
	Divergent            int
	TimeDivergent        int
	TransdataOnly        int
	GlobusOnly           int
	CompatibilityPercent models.Percent
	LinesAnalyzed        int
}

// Reconciliation is the complete engine output for one date.
type Reconciliation struct {
	Pairs  []MatchedPair
	Counts RunCounts
}

var directionAliases = map[string]models.Direction{
	"IDA":      models.DirectionOutbound,
	"I":        models.DirectionOutbound,
	"1":        models.DirectionOutbound,
	"TRUE":     models.DirectionOutbound,
	"S":        models.DirectionOutbound,
	"VOLTA":    models.DirectionReturn,
	"V":        models.DirectionReturn,
	"0":        models.DirectionReturn,
	"FALSE":    models.DirectionReturn,
	"N":        models.DirectionReturn,
	"CIRCULAR": models.DirectionCircular,
	"C":        models.DirectionCircular,
}

// CanonicalDirection maps a raw direction from either source onto IDA, VOLTA or CIRCULAR.
func CanonicalDirection(raw string) (models.Direction, bool) {
	dir, ok := directionAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return dir, ok
}

// NormalizeService trims a service number and strips leading zeros ("012" and "12" match).
func NormalizeService(raw string) string {
	trimmed := strings.TrimSpace(raw)
	stripped := strings.TrimLeft(trimmed, "0")
	if stripped == "" && trimmed != "" {
		return "0"
	}
	return strings.ToUpper(stripped)
}

// NormalizeLine is the grouping key for line codes.
func NormalizeLine(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// DeriveComparisonStatus is the only place a status is decided. Presence wins over flags.
func DeriveComparisonStatus(hasTransdata, hasGlobus, serviceOK, directionOK, timeOK bool) models.ComparisonStatus {
	switch {
	case !hasGlobus:
		return models.StatusTransdataOnly
	case !hasTransdata:
		return models.StatusGlobusOnly
	case !serviceOK || !directionOK:
		return models.StatusDivergent
	case !timeOK:
		return models.StatusTimeDivergent
	default:
		return models.StatusCompatible
	}
}

func directionsMatch(a string, b models.Direction) bool {
	ca, okA := CanonicalDirection(a)
	cb, okB := CanonicalDirection(string(b))
	if okA && okB {
		return ca == cb
	}
	if !okA && !okB {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(string(b)))
	}
	return false
}

// startDelta returns B−A; ok is false when either side has no scheduled start.
func startDelta(a *models.TransdataTrip, b *models.GlobusTrip) (time.Duration, bool) {
	if a.ScheduledStart == nil || b.ScheduledStart == nil {
		return 0, false
	}
	return b.ScheduledStart.Sub(*a.ScheduledStart), true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// ClassifyPair computes flags and status for a candidate pair; either side may be nil.
func ClassifyPair(a *models.TransdataTrip, b *models.GlobusTrip, tolerance time.Duration) MatchedPair {
	pair := MatchedPair{Transdata: a, Globus: b}
	switch {
	case a != nil:
		pair.LineCode = strings.TrimSpace(a.LineCode)
	case b != nil:
		pair.LineCode = strings.TrimSpace(b.LineCode)
	}

	if a != nil && b != nil {
		pair.ServiceCompatible = NormalizeService(a.ServiceNumber) == NormalizeService(b.ServiceNumber)
		pair.DirectionCompatible = directionsMatch(a.Direction, b.Direction)
		if delta, ok := startDelta(a, b); ok {
			minutes := int(math.Round(delta.Minutes()))
			pair.TimeDifferenceMinutes = &minutes
			pair.TimeCompatible = absDuration(delta) <= tolerance
		}
	}

	pair.Status = DeriveComparisonStatus(a != nil, b != nil, pair.ServiceCompatible, pair.DirectionCompatible, pair.TimeCompatible)
	return pair
}

// candidate is a same-service pairing considered by the first matching pass.
type candidate struct {
	td, gl        int
	sameDirection bool
	onTime        bool
	delta         time.Duration
}

// before ranks same direction first, then within tolerance, then the smallest gap.
// Indices break ties; both sides are already ordered by start and source id.
func (c candidate) before(o candidate) bool {
	switch {
	case c.sameDirection != o.sameDirection:
		return c.sameDirection
	case c.onTime != o.onTime:
		return c.onTime
	case c.delta != o.delta:
		return c.delta < o.delta
	case c.td != o.td:
		return c.td < o.td
	default:
		return c.gl < o.gl
	}
}

type lineGroup struct {
	transdata []*models.TransdataTrip
	globus    []*models.GlobusTrip
}

// Reconcile pairs the trips of one date line by line and classifies every outcome.
//
// Per line, pass one ranks every same-service pair (same direction first, then within
// tolerance, then nearest start) and assigns greedily in that order, so direction stays a
// flag rather than a join key. Pass two pairs the leftovers with any unmatched Globus trip of
// the line starting within tolerance. Anything left is one-sided.
func Reconcile(transdata []models.TransdataTrip, globus []models.GlobusTrip, opts MatchOptions) Reconciliation {
	tolerance := opts.Tolerance
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}

	groups := make(map[string]*lineGroup)
	group := func(line string) *lineGroup {
		key := NormalizeLine(line)
		g, ok := groups[key]
		if !ok {
			g = &lineGroup{}
			groups[key] = g
		}
		return g
	}
	for i := range transdata {
		g := group(transdata[i].LineCode)
		g.transdata = append(g.transdata, &transdata[i])
	}
	for i := range globus {
		g := group(globus[i].LineCode)
		g.globus = append(g.globus, &globus[i])
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]MatchedPair, 0, len(transdata)+len(globus))
	for _, key := range keys {
		pairs = append(pairs, matchLine(groups[key], tolerance)...)
	}

	return Reconciliation{Pairs: pairs, Counts: Summarize(pairs)}
}

func matchLine(g *lineGroup, tolerance time.Duration) []MatchedPair {
	sortTransdata(g.transdata)
	sortGlobus(g.globus)

	partner := make([]int, len(g.transdata))
	for i := range partner {
		partner[i] = -1
	}
	taken := make([]bool, len(g.globus))

	// pass one: same service, best candidates first across the whole line
	candidates := make([]candidate, 0, len(g.transdata))
	for i, a := range g.transdata {
		wantService := NormalizeService(a.ServiceNumber)
		for j, b := range g.globus {
			if NormalizeService(b.ServiceNumber) != wantService {
				continue
			}
			c := candidate{td: i, gl: j, sameDirection: directionsMatch(a.Direction, b.Direction), delta: time.Duration(math.MaxInt64)}
			if d, ok := startDelta(a, b); ok {
				c.delta = absDuration(d)
				c.onTime = c.delta <= tolerance
			}
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(x, y int) bool {
		return candidates[x].before(candidates[y])
	})
	for _, c := range candidates {
		if partner[c.td] >= 0 || taken[c.gl] {
			continue
		}
		partner[c.td] = c.gl
		taken[c.gl] = true
	}

	// pass two: leftovers of different services, nearest start within tolerance
	for i, a := range g.transdata {
		if partner[i] >= 0 {
			continue
		}
		best, bestDelta := -1, time.Duration(0)
		for j, b := range g.globus {
			if taken[j] {
				continue
			}
			d, ok := startDelta(a, b)
			if !ok || absDuration(d) > tolerance {
				continue
			}
			if best == -1 || absDuration(d) < bestDelta {
				best, bestDelta = j, absDuration(d)
			}
		}
		if best >= 0 {
			partner[i] = best
			taken[best] = true
		}
	}

	out := make([]MatchedPair, 0, len(g.transdata)+len(g.globus))
	for i, a := range g.transdata {
		var b *models.GlobusTrip
		if partner[i] >= 0 {
			b = g.globus[partner[i]]
		}
		out = append(out, ClassifyPair(a, b, tolerance))
	}
	for j, b := range g.globus {
		if !taken[j] {
			out = append(out, ClassifyPair(nil, b, tolerance))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return pairStart(out[i]).Before(pairStart(out[j]))
	})
	return out
}

func pairStart(p MatchedPair) time.Time {
	if p.Transdata != nil && p.Transdata.ScheduledStart != nil {
		return *p.Transdata.ScheduledStart
	}
	if p.Globus != nil && p.Globus.ScheduledStart != nil {
		return *p.Globus.ScheduledStart
	}
	return time.Time{}
}

func sortTransdata(trips []*models.TransdataTrip) {
	sort.SliceStable(trips, func(i, j int) bool {
		return lessStart(trips[i].ScheduledStart, trips[j].ScheduledStart, trips[i].SourceID, trips[j].SourceID)
	})
}

func sortGlobus(trips []*models.GlobusTrip) {
	sort.SliceStable(trips, func(i, j int) bool {
		return lessStart(trips[i].ScheduledStart, trips[j].ScheduledStart, trips[i].SourceID, trips[j].SourceID)
	})
}

// lessStart orders by start (missing last), then by source id.
func lessStart(a, b *time.Time, idA, idB string) bool {
	switch {
	case a == nil && b == nil:
		return idA < idB
	case a == nil:
		return false
	case b == nil:
		return true
	case !a.Equal(*b):
		return a.Before(*b)
	default:
		return idA < idB
	}
}

// Summarize counts statuses and distinct lines of a set of pairs.
func Summarize(pairs []MatchedPair) RunCounts {
	counts := RunCounts{Total: len(pairs)}
	lines := make(map[string]struct{})
	for _, p := range pairs {
		lines[NormalizeLine(p.LineCode)] = struct{}{}
		switch p.Status {
		case models.StatusCompatible:
			counts.Compatible++
		case models.StatusDivergent:
			counts.Divergent++
		case models.StatusTimeDivergent:
			counts.TimeDivergent++
		case models.StatusTransdataOnly:
			counts.TransdataOnly++
		case models.StatusGlobusOnly:
			counts.GlobusOnly++
		}
	}
	counts.LinesAnalyzed = len(lines)
	counts.CompatibilityPercent = models.NewPercent(counts.Compatible, counts.Total)
	return counts
}
