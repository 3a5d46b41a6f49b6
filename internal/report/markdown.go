package report

import (
	"fmt"
	"strings"

	"github.com/marvinguevarra/trading-analyzer/internal/model"
)

const dateLayout = "2006-01-02"

// Markdown renders the report as a human-readable markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s Technical Analysis\n\n", r.Metadata.Symbol))
	b.WriteString(fmt.Sprintf("Generated: %s | Timeframe: %s | Bars: %d | Data quality: %.2f\n\n",
		r.Metadata.GeneratedAt, r.Metadata.Timeframe, r.Metadata.BarCount, r.Metadata.QualityScore))
	b.WriteString(fmt.Sprintf("**Current price: %.2f**\n\n", r.CurrentPrice))

	writeGapSection(&b, r.Gaps)
	writeLevelSection(&b, r.Levels)
	writeZoneSection(&b, r.Zones)

	return b.String()
}

func writeGapSection(b *strings.Builder, s model.GapSummary) {
	b.WriteString("## Price Gaps\n\n")
	if s.Total == 0 {
		b.WriteString("No gaps detected.\n\n")
		return
	}
	b.WriteString(fmt.Sprintf("%d gaps detected, %d unfilled (%d up / %d down).\n\n",
		s.Total, s.Unfilled, s.ByDirection["up"], s.ByDirection["down"]))

	if g := s.LargestUnfilled; g != nil {
		b.WriteString(fmt.Sprintf("Top unfilled gap: %s %s gap %.2f-%.2f (%.2f%%), severity %d/10.\n\n",
			g.Date.Format(dateLayout), g.Direction, g.GapLow, g.GapHigh, g.SizePct, g.Severity))
	}

	b.WriteString("| Date | Dir | Range | Size % | Type | Filled | Severity |\n")
	b.WriteString("|------|-----|-------|--------|------|--------|----------|\n")
	for _, g := range s.Gaps {
		filled := "no"
		if g.Filled {
			filled = "yes"
		} else if g.FillPct > 0 {
			filled = fmt.Sprintf("%.0f%%", g.FillPct*100)
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %.2f-%.2f | %.2f | %s | %s | %d |\n",
			g.Date.Format(dateLayout), g.Direction, g.GapLow, g.GapHigh, g.SizePct, g.GapType, filled, g.Severity))
	}
	b.WriteString("\n")
}

func writeLevelSection(b *strings.Builder, s model.LevelSummary) {
	b.WriteString("## Support / Resistance\n\n")
	if s.TotalLevels == 0 {
		b.WriteString("No levels detected.\n\n")
		return
	}
	b.WriteString(fmt.Sprintf("%d levels across %s.\n\n",
		s.TotalLevels, strings.Join(s.TimeframesAnalyzed, ", ")))

	if l := s.NearestSupport; l != nil {
		b.WriteString(fmt.Sprintf("Nearest support: **%.2f** (%s, %s)\n", l.Price, l.Label(), l.Timeframe))
	}
	if l := s.NearestResistance; l != nil {
		b.WriteString(fmt.Sprintf("Nearest resistance: **%.2f** (%s, %s)\n", l.Price, l.Label(), l.Timeframe))
	}
	b.WriteString("\n")

	if len(s.KeyLevels) > 0 {
		b.WriteString("### Key levels\n\n")
		b.WriteString("| Price | Type | Source | Strength | Score | Touches | Status | Timeframe |\n")
		b.WriteString("|-------|------|--------|----------|-------|---------|--------|-----------|\n")
		for _, l := range s.KeyLevels {
			tf := l.Timeframe
			if l.IsConfluence {
				tf = tf + " ⭐"
			}
			b.WriteString(fmt.Sprintf("| %.2f | %s | %s | %d | %d | %d | %s | %s |\n",
				l.Price, l.LevelType, l.Source, l.Strength, l.StrengthScore, l.Touches, l.Status(), tf))
		}
		b.WriteString("\n")
	}
}

func writeZoneSection(b *strings.Builder, s model.ZoneSummary) {
	b.WriteString("## Supply / Demand Zones\n\n")
	if s.TotalZones == 0 {
		b.WriteString("No zones detected.\n\n")
		return
	}
	b.WriteString(fmt.Sprintf("%d zones (%d demand / %d supply), %d fresh.\n\n",
		s.TotalZones, len(s.DemandZones), len(s.SupplyZones), len(s.FreshZones)))

	if z := s.NearestDemand; z != nil {
		b.WriteString(fmt.Sprintf("Nearest demand below: **%.2f-%.2f** (%s, strength %d/10)\n",
			z.PriceLow, z.PriceHigh, z.Pattern, z.Strength))
	}
	if z := s.NearestSupply; z != nil {
		b.WriteString(fmt.Sprintf("Nearest supply above: **%.2f-%.2f** (%s, strength %d/10)\n",
			z.PriceLow, z.PriceHigh, z.Pattern, z.Strength))
	}
	b.WriteString("\n")

	b.WriteString("| Type | Pattern | Range | Formed | Strength | Fresh | Tests | Volume |\n")
	b.WriteString("|------|---------|-------|--------|----------|-------|-------|--------|\n")
	for _, z := range s.DemandZones {
		writeZoneRow(b, z)
	}
	for _, z := range s.SupplyZones {
		writeZoneRow(b, z)
	}
	b.WriteString("\n")
}

func writeZoneRow(b *strings.Builder, z model.Zone) {
	fresh := "no"
	if z.Fresh {
		fresh = "yes"
	}
	vol := "-"
	if z.VolumeConfirmed {
		vol = "confirmed"
	}
	b.WriteString(fmt.Sprintf("| %s | %s | %.2f-%.2f | %s | %d | %s | %d | %s |\n",
		z.ZoneType, z.Pattern, z.PriceLow, z.PriceHigh,
		z.EndDate.Format(dateLayout), z.Strength, fresh, z.TestCount, vol))
}
