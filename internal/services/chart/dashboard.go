package chart

import (
	"context"

	"Naly/internal/domain/models"
	"Naly/pkg/apperr"
)

const (
	interactionSync      = "time-range-sync"
	interactionHighlight = "cross-highlight"
)

// CreateDashboard lays visualizations out on a grid and links them. Charts
// on a time axis share their visible range; neighbours highlight each other.
func (b *Builder) CreateDashboard(_ context.Context, visualizations []models.Visualization) (*models.Dashboard, error) {
	if len(visualizations) == 0 {
		return nil, apperr.Validation("dashboard needs at least one visualization")
	}

	return &models.Dashboard{
		ID:             b.newID(),
		Layout:         layout(visualizations),
		Visualizations: append([]models.Visualization(nil), visualizations...),
		Interactions:   interactions(visualizations),
	}, nil
}

func columnsFor(n int) int {
	switch {
	case n <= 1:
		return 1
	case n <= 4:
		return 2
	case n <= 9:
		return 3
	default:
		return 4
	}
}

func layout(vs []models.Visualization) models.DashboardLayout {
	cols := columnsFor(len(vs))
	l := models.DashboardLayout{
		Columns: cols,
		Rows:    (len(vs) + cols - 1) / cols,
	}
	for i, v := range vs {
		l.Positions = append(l.Positions, models.GridPosition{
			VisualizationID: v.ID,
			Row:             i / cols,
			Col:             i % cols,
			Width:           1,
			Height:          1,
		})
	}
	return l
}

func timeBased(t models.ChartType) bool {
	return t == models.ChartLine || t == models.ChartCandlestick || t == models.ChartFan
}

func interactions(vs []models.Visualization) []models.DashboardInteraction {
	out := []models.DashboardInteraction{}
	prevTimed := -1
	for i, v := range vs {
		if i > 0 {
			out = append(out, models.DashboardInteraction{Type: interactionHighlight, Source: vs[i-1].ID, Target: v.ID})
		}
		if timeBased(v.Type) {
			if prevTimed >= 0 {
				out = append(out, models.DashboardInteraction{Type: interactionSync, Source: vs[prevTimed].ID, Target: v.ID})
			}
			prevTimed = i
		}
	}
	return out
}
