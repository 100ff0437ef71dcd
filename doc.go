// Package imgcache loads images into display slots through a two-tier
// cache.
//
// A Loader resolves an address through a size-bounded memory cache of
// decoded resources, an optional persistent cache holding one file per
// key, and finally a Downloader. Network results are written through to
// both caches.
//
// # Quick Start
//
//	l, _ := imgcache.New(renderer,
//	    imgcache.WithMemoryCacheSize(64<<20),
//	    imgcache.WithDiskCache("/var/cache/img", 256<<20),
//	)
//	defer l.Close()
//
//	status := <-l.Display(slot, "https://example.com/a.png")
//
// # Slots
//
// Each slot loads at most one address at a time. Displaying a new address
// on a slot cancels its previous load; a result that arrives for an address
// the slot no longer wants is dropped. Hosts call Detach when a slot is
// torn down.
//
// # Resources
//
// Decoded images are wrapped in renderable.Resource values that count the
// slots displaying them and the caches holding them. Once both counts drop
// to zero the pixels are released after a grace delay.
//
// # Pausing
//
//	l.Pause()   // e.g. while the host scrolls fast
//	l.Resume()
//
// Loads block at their next checkpoint while paused.
package imgcache
