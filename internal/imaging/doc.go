// Package imaging prepares photographs for the odometer detector.
//
// It covers loading and caching decoded photos, the two canvas geometries the
// reading pipeline uses (a letterboxed full frame and a center crop), encoding
// a canvas into the model's float tensor, and drawing detections back onto a
// canvas for inspection.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For rectangles, Min is inclusive and Max is exclusive
//
// Letterbox records the scale and padding it applied so that canvas
// coordinates can be mapped back with FrameGeometry.ToSource.
//
// # Ownership
//
// Geometry functions never modify their source image. Each call returns a new
// canvas owned by the caller. Tensors come from a pool; call Release once the
// detector is done with them and do not touch Data afterwards.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are stateless
// and can run concurrently on different images.
//
// # Performance Considerations
//
// Photos are downsampled on load to the cache's maximum dimension. Use Evict()
// or Clear() to bound memory in long-running processes.
package imaging
