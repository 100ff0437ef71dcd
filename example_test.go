package imgcache_test

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"

	"github.com/hupe1980/imgcache"
	"github.com/hupe1980/imgcache/downloader"
	"github.com/hupe1980/imgcache/renderable"
	"github.com/hupe1980/imgcache/testutil"
)

// Example_load resolves an image synchronously. The second load is served
// from the memory cache.
func Example_load() {
	mem := downloader.NewMemory()
	mem.Set("https://example.com/logo.png", testutil.SolidPNG(64, 32, color.Black))

	l, err := imgcache.New(nil, imgcache.WithDownloader(mem))
	if err != nil {
		log.Fatal(err)
	}
	defer l.Close()

	ctx := context.Background()
	r, err := l.Load(ctx, "https://example.com/logo.png", 0, 0)
	if err != nil {
		log.Fatal(err)
	}
	b := r.Image().Bounds()
	fmt.Printf("%dx%d\n", b.Dx(), b.Dy())

	again, _ := l.Load(ctx, "https://example.com/logo.png", 0, 0)
	fmt.Println("same resource:", again == r)
	fmt.Println("downloads:", mem.Calls("https://example.com/logo.png"))
	// Output:
	// 64x32
	// same resource: true
	// downloads: 1
}

type slot struct{}

func (slot) ID() imgcache.SlotID { return 1 }
func (slot) Alive() bool         { return true }
func (slot) Size() (int, int)    { return 16, 16 }

type renderer struct{ done chan image.Image }

func (r renderer) OnLoadSuccess(_ imgcache.Slot, res *renderable.Resource, _ imgcache.DisplayConfig) {
	r.done <- res.Image()
}

func (r renderer) OnLoadFailure(imgcache.Slot, image.Image) { close(r.done) }

// Example_display binds an image to a slot. The decode is bounded by the
// slot size and the result arrives on the renderer.
func Example_display() {
	dir, err := os.MkdirTemp("", "imgcache-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	mem := downloader.NewMemory()
	mem.Set("https://example.com/photo.png", testutil.SolidPNG(128, 128, color.White))

	r := renderer{done: make(chan image.Image, 1)}
	l, err := imgcache.New(r,
		imgcache.WithDownloader(mem),
		imgcache.WithDiskCache(dir, 0),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Close()

	status := <-l.Display(slot{}, "https://example.com/photo.png")
	fmt.Println(status)

	img := <-r.done
	fmt.Println(img.Bounds().Dx())
	// Output:
	// dispatched
	// 16
}
