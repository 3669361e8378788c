// Package imaging provides the image plumbing shared by the region pipeline.
//
// It loads and caches images, resizes them to the segmentation working
// height, converts them into the colour domains segmentation runs in, and
// offers a float Plane type with the blur and gradient filters used for
// saliency and texture measures. It also renders crops, annotated boxes
// and per-region colour palettes for the MCP tools.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Regions are half-open
// image.Rectangle values: Min is inclusive, Max is exclusive.
//
// # Colour Domains
//
// ConvertDomains produces one three-channel DomainImage per Domain:
//   - bgr: the source channels in blue, green, red order
//   - hsv: hue, saturation, value scaled to 0-255
//   - lab: CIE-Lab via go-colorful, each channel scaled to 0-255
//   - intensity: luminance replicated into all three channels
//   - rgi: red and green channels plus luminance
//   - ycrcb: ITU-R BT.601 luma and chroma
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Plane and DomainImage values are
// not. Blur and gradient filters return a new Plane; Normalize and Fill
// work in place.
//
// # Performance Considerations
//
// Images stay cached until Evict or Clear is called, so long-running
// processes analysing many files should evict what they no longer need.
package imaging
