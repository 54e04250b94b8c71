// Package buffer provides fixed-capacity float64 storage for real-time
// paths. A Buffer is sized once at construction; Resize only moves the
// visible length within that capacity and never allocates, so the same
// storage can be reused block after block.
package buffer
