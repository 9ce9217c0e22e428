//go:build !windows

package overlay

import (
	"context"
	"fmt"
	"runtime"

	"im2any/src/screenshot"
)

type stubSelector struct{}

func newPlatformSelector() Selector { return stubSelector{} }

func (stubSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	return screenshot.Region{}, false, fmt.Errorf("interactive region selection not implemented on %s", runtime.GOOS)
}
