// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ports

import (
	"context"

	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
)

// AdHandler resolves an ad source to a concrete player and runs it.
type AdHandler interface {
	// PreloadAd prepares src ahead of playback. Failures are advisory.
	PreloadAd(ctx context.Context, src *model.Source) error
	// PlayAd blocks until the ad finished, failed or ctx was canceled.
	PlayAd(ctx context.Context, src *model.Source, progress model.ProgressFunc) error
}
