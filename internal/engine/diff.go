package engine

import (
	"unicode/utf8"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// diffStats counts inserted and deleted runes between two texts.
func diffStats(before string, after string) *domain.DiffStats {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	stats := &domain.DiffStats{}
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Inserted += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			stats.Deleted += utf8.RuneCountInString(d.Text)
		}
	}
	return stats
}
