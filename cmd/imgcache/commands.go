package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/imgcache"
)

func newFetchCmd(a *app) *cobra.Command {
	var width, height int

	cmd := &cobra.Command{
		Use:   "fetch ADDRESS...",
		Short: "Load images through the cache and print what was decoded",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ADDRESS\tKEY\tSIZE\tMEMORY\tTIME")

			var errs []error
			for _, address := range args {
				start := time.Now()
				r, err := a.loader.Load(cmd.Context(), address, width, height)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", address, err))
					continue
				}
				img := r.Image()
				if img == nil {
					errs = append(errs, fmt.Errorf("%s: %w", address, imgcache.ErrStale))
					continue
				}
				b := img.Bounds()
				fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%s\t%s\n",
					address, r.Key(), b.Dx(), b.Dy(),
					humanize.IBytes(uint64(r.Size())),
					time.Since(start).Round(time.Millisecond),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "decode bound width (0 = full size)")
	cmd.Flags().IntVar(&height, "height", 0, "decode bound height (0 = full size)")
	return cmd
}

func newPrefetchCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "prefetch [ADDRESS...]",
		Short: "Download images into the persistent cache without decoding",
		RunE: func(cmd *cobra.Command, args []string) error {
			addresses := args
			if file != "" {
				more, err := readAddresses(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				addresses = append(addresses, more...)
			}
			if len(addresses) == 0 {
				return errors.New("no addresses given")
			}

			var (
				mu   sync.Mutex
				errs []error
				done int
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(1, a.cfg.concurrency))
			for _, address := range addresses {
				g.Go(func() error {
					err := a.loader.Prefetch(ctx, address)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", address, err))
						return nil
					}
					done++
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			stats := a.loader.Stats()
			a.logger.Info("prefetch finished",
				"cached", done,
				"failed", len(errs),
				"disk_size", humanize.IBytes(uint64(stats.Disk.Size)),
			)
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read addresses from a file, one per line (- for stdin)")
	return cmd
}

func readAddresses(stdin io.Reader, file string) ([]string, error) {
	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show persistent cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.loader.Stats()
			w := cmd.OutOrStdout()
			if !s.DiskEnabled {
				fmt.Fprintln(w, "persistent cache: disabled")
				return nil
			}
			fmt.Fprintf(w, "directory: %s\n", s.DiskDir)
			fmt.Fprintf(w, "entries:   %s\n", humanize.Comma(int64(s.Disk.Len)))
			fmt.Fprintf(w, "size:      %s of %s (%.1f%%)\n",
				humanize.IBytes(uint64(s.Disk.Size)),
				humanize.IBytes(uint64(s.Disk.MaxSize)),
				percent(s.Disk.Size, s.Disk.MaxSize),
			)
			return nil
		},
	}
}

func percent(n, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every persistent cache entry",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			before := a.loader.Stats().Disk
			if err := a.loader.ClearDisk(); err != nil {
				return err
			}
			a.logger.Info("cache cleared",
				"entries", before.Len,
				"freed", humanize.IBytes(uint64(before.Size)),
			)
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ADDRESS...",
		Short: "Drop addresses from the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var errs []error
			for _, address := range args {
				if err := a.loader.Remove(address); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}
