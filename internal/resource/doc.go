// Package resource implements the resource controller shared by the caches
// of one loader.
//
//   - Memory: bytes of decoded pixels held by the memory cache, with an
//     optional hard limit (non-blocking, fail-fast)
//   - Background: bounded concurrency for prefetch downloads
//   - IO: token-bucket throttling of persistent cache writes
//
// All methods are safe for concurrent use, and all methods of a nil
// *Controller are no-ops, so callers can leave limiting unconfigured.
package resource
