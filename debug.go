package ardw

import (
	"time"
)

// RenderStats counts the redraws of one surface's rasters.
type RenderStats struct {
	BackgroundRedraws int
	HighlightRedraws  int
	// LastBackground and LastHighlight are the durations of the most recent
	// redraw of each raster.
	LastBackground time.Duration
	LastHighlight  time.Duration
}

// ResetStats zeroes the redraw counters of every surface.
func (a *App) ResetStats() {
	for _, s := range a.surfaces {
		s.stats = RenderStats{}
	}
}

// debugLog reports a redraw timing when debug mode is on.
func (a *App) debugLog(s *Surface, raster string, d time.Duration) {
	if !a.debug {
		return
	}
	Logger().Debug("redraw",
		"surface", s.ID.String(),
		"raster", raster,
		"took", d,
		"background_redraws", s.stats.BackgroundRedraws,
		"highlight_redraws", s.stats.HighlightRedraws)
}
