// Package cache provides the two cache tiers of the image loader.
//
// # Memory Cache
//
// [LRU] is a generic, size-accounted, access-ordered cache. [MemoryCache]
// specializes it for decoded resources: the byte cost is the pixel size,
// admission takes a cache reference on the resource and eviction drops it.
// Put is first-writer-wins and returns the resident resource.
//
// # Disk Cache
//
// [DiskCache] stores one file per key in a flat directory:
//   - Writes are staged in "<key>.temp" and renamed on Commit, so a crash
//     never exposes a partially written entry
//   - Eviction starts when an incoming entry would reach the budget and
//     continues down to 90% of it
//   - Initialize rebuilds the index from the directory listing
package cache
