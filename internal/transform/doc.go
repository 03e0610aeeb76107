// Package transform provides the image transforms applied to every image
// the crawler acquires.
//
// A Transform is a named pure function from one image to a new image (or
// an error). The built-in catalog is:
//
//   - grayscale: luma conversion using the 0.299/0.587/0.114 weights
//   - sepia: warm brown toning
//   - tint: blend each channel towards white by a per-channel factor
//   - mirror: horizontal flip
//   - orient: rotate or flip according to the EXIF Orientation tag
//
// Transforms never modify their input; the source image may be shared by
// several transforms running concurrently.
package transform
