// Package renderable holds the decoded images shared between display slots
// and caches.
//
// A [Resource] carries two reference counts. The display count is driven by
// the loader as slots bind and unbind the resource; the cache count is
// driven by the memory cache as it admits and evicts it. When both reach
// zero the pixels are dropped after a grace delay, which is cancelled if the
// resource is referenced again first.
package renderable
