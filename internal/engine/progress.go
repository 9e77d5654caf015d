package engine

import (
	"io"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
)

// NewProgressBar returns a ProgressFunc drawing a bar on w. The bar is sized
// on the first call.
func NewProgressBar(w io.Writer) ProgressFunc {
	var bar *progressbar.ProgressBar
	return func(done, total int, file string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription("parsing"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(false),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionThrottle(0),
			)
		}
		bar.Describe(filepath.Base(file))
		_ = bar.Set(done)
	}
}
