package media

import "github.com/JakeFAU/content-capture/internal/capture"

// SelectThumbnail picks the image that best represents a capture. Materialized assets win,
// then assets whose known dimensions are at least minDim (unknown dimensions pass), then
// the first image. ok is false only when images is empty.
func SelectThumbnail(images []capture.MediaAsset, minDim int) (asset capture.MediaAsset, ok bool) {
	if len(images) == 0 {
		return capture.MediaAsset{}, false
	}
	bigEnough := func(a capture.MediaAsset) bool {
		return (a.Width == 0 || a.Width >= minDim) && (a.Height == 0 || a.Height >= minDim)
	}
	passes := []func(capture.MediaAsset) bool{
		func(a capture.MediaAsset) bool { return a.Materialized() && bigEnough(a) },
		func(a capture.MediaAsset) bool { return a.Materialized() },
		bigEnough,
	}
	for _, pass := range passes {
		for _, img := range images {
			if pass(img) {
				return img, true
			}
		}
	}
	return images[0], true
}
