package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/IshaanNene/NovelGoat/internal/types"
)

// ProgressFunc is called after each chapter of a batch with the number of
// chapters done so far and the batch size.
type ProgressFunc func(done, total int)

// FetchChapters fills in content for each chapter, one at a time, waiting
// delay after every fetch. Chapters that already have content are left
// alone and cost neither a fetch nor a delay, but still count towards
// progress. onProgress may be nil.
//
// The returned error is non-nil only when ctx ends the batch early; the
// chapters filled until then keep their content.
func (s *Scraper) FetchChapters(ctx context.Context, chapters []*types.Chapter, delay time.Duration, onProgress ProgressFunc) ([]*types.Chapter, error) {
	total := len(chapters)
	if total == 0 {
		return chapters, nil
	}

	sess, err := s.newFetcher()
	if err != nil {
		return chapters, fmt.Errorf("open fetcher: %w", err)
	}
	defer sess.Close()

	start := time.Now()
	for i, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return chapters, err
		}

		if ch != nil && !ch.HasContent() {
			s.fillChapter(ctx, sess, ch)
			if err := sleepContext(ctx, delay); err != nil {
				return chapters, err
			}
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	s.logger.Info("batch complete", "chapters", total, "elapsed", time.Since(start))
	return chapters, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
