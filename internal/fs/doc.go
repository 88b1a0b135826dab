// Package fs abstracts the filesystem operations used by discovery and
// mirroring so tests can inject failures.
//
//   - [LocalFS]: production implementation backed by the os package
//   - [FaultyFS]: wrapper injecting errors into listing, stat, writes, sync and close
//
// Production code uses fs.Default:
//
//	entries, err := fs.Default.ReadDir(dir)
//
// Tests wrap it:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("rewards_3.dat", fs.Fault{FailAfterBytes: 16})
//
// Operations take no context.Context: local filesystem calls are not
// interruptible at the syscall level. Remote reads go through blobstore.
package fs
