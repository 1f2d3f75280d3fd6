package widget

import (
	"github.com/bep/debounce"

	"fatrack/internal/constants"
)

// RefreshScheduler coalesces refresh hints for the rendering surface. A new
// hint within the quiet period replaces the pending one; a hint cancelled
// before its deadline never fires.
type RefreshScheduler struct {
	debounced func(func())
	refresh   func()
}

func NewRefreshScheduler(refresh func()) *RefreshScheduler {
	return &RefreshScheduler{
		debounced: debounce.New(constants.WidgetRefreshDebounce),
		refresh:   refresh,
	}
}

// Request asks for a refresh once changes settle.
func (r *RefreshScheduler) Request() {
	r.debounced(r.refresh)
}
