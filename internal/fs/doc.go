// Package fs provides the file system abstraction used by the persistent
// image cache, plus fault injection for tests.
//
//   - [FileSystem]: open, remove, rename, stat, list and free-space probing
//   - [LocalFS]: production implementation on top of package os
//   - [FaultyFS]: wraps another FileSystem and fails writes, syncs, closes,
//     renames or space probes on demand
//
// Tests simulate a crash between the temp write and the commit with:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".temp", fs.Fault{FailAfterBytes: 10})
//
// Operations do not take a context.Context; local file calls are short
// and not interruptible at the syscall level.
package fs
