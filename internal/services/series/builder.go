// Package series builds the per-concept quarterly series consumed by
// charting: one resolved value per display quarter, with fiscal Q4 gaps
// filled by derivation from annual totals.
package series

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quartus/internal/common"
	"github.com/ternarybob/quartus/internal/models"
	"github.com/ternarybob/quartus/internal/services/selection"
)

// WindowProvider supplies the cached quarter windows a series is built
// from. Satisfied by the cache service.
type WindowProvider interface {
	DisplayWindow(ctx context.Context, ticker string) ([]*models.QuarterBatch, error)
	CalculationWindow(ctx context.Context, ticker string) ([]*models.QuarterBatch, error)
}

// Builder resolves concept series from cached quarter batches.
type Builder struct {
	windows  WindowProvider
	selector *selection.Selector
	config   *common.SeriesConfig
	logger   arbor.ILogger
}

// NewBuilder creates a new series builder
func NewBuilder(windows WindowProvider, selector *selection.Selector, config *common.SeriesConfig, logger arbor.ILogger) *Builder {
	return &Builder{
		windows:  windows,
		selector: selector,
		config:   config,
		logger:   logger,
	}
}

// Build resolves one concept across the ticker's display window. Points
// come back oldest first. Q4 quarters with no directly reported quarterly
// fact are derived from the year's annual total when the calculation
// window holds all three sibling quarters; otherwise the point carries no
// value. Derivation always draws on the calculation window even though
// only display quarters are returned.
func (b *Builder) Build(ctx context.Context, ticker, concept string) (*models.SelectedSeries, error) {
	display, err := b.windows.DisplayWindow(ctx, ticker)
	if err != nil {
		return nil, err
	}
	calc, err := b.windows.CalculationWindow(ctx, ticker)
	if err != nil {
		return nil, err
	}

	byLabel := make(map[string]*models.QuarterBatch, len(calc))
	for _, batch := range calc {
		byLabel[batch.QuarterLabel] = batch
	}

	// Windows are most recent first; series points are oldest first.
	points := make([]models.SeriesPoint, 0, len(display))
	for i := len(display) - 1; i >= 0; i-- {
		points = append(points, b.resolvePoint(display[i], concept, byLabel))
	}
	b.applyGrowth(points)

	resolved := 0
	for _, p := range points {
		if p.HasValue {
			resolved++
		}
	}
	b.logger.Debug().
		Str("ticker", ticker).
		Str("concept", concept).
		Int("points", len(points)).
		Int("resolved", resolved).
		Msg("Built series")

	return &models.SelectedSeries{
		Ticker:      ticker,
		Concept:     concept,
		Points:      points,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// BuildBest resolves each candidate concept and merges them quarter by
// quarter: a point comes from whichever concept resolved the larger
// absolute value there, first concept winning ties. Companies report
// revenue under different taxonomy concepts, sometimes switching mid
// history; per-point Source.Concept records which one each value came
// from. The series Concept is the one that contributed the most points.
func (b *Builder) BuildBest(ctx context.Context, ticker string, concepts []string) (*models.SelectedSeries, error) {
	if len(concepts) == 0 {
		return nil, fmt.Errorf("no candidate concepts")
	}

	all := make([]*models.SelectedSeries, len(concepts))
	for i, concept := range concepts {
		s, err := b.Build(ctx, ticker, concept)
		if err != nil {
			return nil, err
		}
		all[i] = s
	}

	merged := all[0]
	for _, s := range all[1:] {
		for i := range merged.Points {
			cur := &merged.Points[i]
			cand := s.Points[i]
			if cand.HasValue && (!cur.HasValue || math.Abs(cand.Value) > math.Abs(cur.Value)) {
				*cur = cand
			}
		}
	}

	// Growth computed per source series is stale after merging.
	for i := range merged.Points {
		merged.Points[i].GrowthPercent = nil
		merged.Points[i].GrowthCapped = false
	}
	b.applyGrowth(merged.Points)

	contributions := make(map[string]int, len(concepts))
	for _, p := range merged.Points {
		if p.HasValue {
			contributions[p.Source.Concept]++
		}
	}
	merged.Concept = concepts[0]
	bestCount := contributions[concepts[0]]
	for _, concept := range concepts[1:] {
		if contributions[concept] > bestCount {
			merged.Concept, bestCount = concept, contributions[concept]
		}
	}
	return merged, nil
}

func (b *Builder) resolvePoint(batch *models.QuarterBatch, concept string, byLabel map[string]*models.QuarterBatch) models.SeriesPoint {
	point := models.SeriesPoint{QuarterLabel: batch.QuarterLabel}

	fq, err := common.ParseQuarterLabel(batch.QuarterLabel)
	if err == nil && fq.Quarter == 4 {
		return b.resolveQ4(batch, fq, concept, byLabel)
	}

	res, ok := b.selector.Select(batch.Facts, concept)
	if !ok {
		return point
	}
	point.Value = *res.Fact.Value
	point.HasValue = true
	point.Source = sourceMeta(res, concept)
	return point
}

// applyGrowth fills year-over-year growth for each point against the same
// quarter one year earlier, clamped to the configured display cap.
func (b *Builder) applyGrowth(points []models.SeriesPoint) {
	byLabel := make(map[string]*models.SeriesPoint, len(points))
	for i := range points {
		byLabel[points[i].QuarterLabel] = &points[i]
	}

	for i := range points {
		cur := &points[i]
		if !cur.HasValue {
			continue
		}
		fq, err := common.ParseQuarterLabel(cur.QuarterLabel)
		if err != nil {
			continue
		}
		prior, ok := byLabel[common.FiscalQuarter{Year: fq.Year - 1, Quarter: fq.Quarter}.Label()]
		if !ok || !prior.HasValue || prior.Value == 0 {
			continue
		}

		growth := (cur.Value - prior.Value) / math.Abs(prior.Value) * 100
		if limit := b.config.MaxGrowthPercent; limit > 0 && math.Abs(growth) > limit {
			growth = math.Copysign(limit, growth)
			cur.GrowthCapped = true
		}
		cur.GrowthPercent = &growth
	}
}

func sourceMeta(res selection.Result, concept string) models.SourceMeta {
	days, _ := res.Fact.PeriodDays()
	return models.SourceMeta{
		FormType:        res.Fact.FormType,
		SelectionMethod: res.Method,
		PeriodDays:      days,
		Unit:            res.Fact.Unit,
		Concept:         concept,
	}
}
