package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Upload sends a local file: upload <permanent|ephemeral> <path>.
func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) != 2 {
		printlnFn("Usage: upload <permanent|ephemeral> <path>")
		return errUsage
	}

	f, err := os.Open(args[1])
	if err != nil {
		printlnFn("Error opening file:", err)
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		printlnFn("Error reading file info:", err)
		return err
	}

	res, err := a.files.Upload(ctx, args[0], filepath.Base(args[1]), f, info.Size())
	if err != nil {
		printlnFn("Upload failed:", err)
		return err
	}

	printlnFn(fmt.Sprintf("Uploaded %s (%d bytes, %s)\n  sha256 %s", res.FileID, res.SizeBytes, res.Lifecycle, res.SHA256))
	return nil
}

// Download saves a file: download <id> <path> [bytes=a-b].
func (a *App) Download(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		printlnFn("Usage: download <id> <path> [bytes=a-b]")
		return errUsage
	}
	var rng string
	if len(args) == 3 {
		rng = args[2]
	}

	f, err := os.Create(args[1])
	if err != nil {
		printlnFn("Error creating file:", err)
		return err
	}
	defer f.Close()

	res, err := a.files.Download(ctx, args[0], rng, f)
	if err != nil {
		printlnFn("Download failed:", err)
		return err
	}

	if res.ContentRange != "" {
		printlnFn(fmt.Sprintf("Saved %d bytes (%s) to %s", res.Bytes, res.ContentRange, args[1]))
	} else {
		printlnFn(fmt.Sprintf("Saved %d bytes to %s", res.Bytes, args[1]))
	}
	return nil
}

// Stat prints a file's size: stat <id>.
func (a *App) Stat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		printlnFn("Usage: stat <id>")
		return errUsage
	}
	size, err := a.files.Size(ctx, args[0])
	if err != nil {
		printlnFn("Stat failed:", err)
		return err
	}
	printlnFn(fmt.Sprintf("%s: %d bytes", args[0], size))
	return nil
}

// Remove deletes ephemeral files: rm <id> [id...].
func (a *App) Remove(ctx context.Context, args []string) error {
	var err error
	switch len(args) {
	case 0:
		printlnFn("Usage: rm <id> [id...]")
		return errUsage
	case 1:
		err = a.files.Delete(ctx, args[0])
	default:
		err = a.files.DeleteMany(ctx, args)
	}
	if err != nil {
		printlnFn("Delete failed:", err)
		return err
	}
	printlnFn(fmt.Sprintf("Deleted %d file(s)", len(args)))
	return nil
}

// RemoveAll deletes every ephemeral file: rmall yes.
func (a *App) RemoveAll(ctx context.Context, args []string) error {
	if len(args) != 1 || args[0] != "yes" {
		printlnFn("This deletes ALL ephemeral files. Type 'rmall yes' to confirm")
		return errUsage
	}
	if err := a.files.DeleteAll(ctx); err != nil {
		printlnFn("Delete failed:", err)
		return err
	}
	printlnFn("All ephemeral files deleted")
	return nil
}

// Collect runs a GC pass: gc [batch].
func (a *App) Collect(ctx context.Context, args []string) error {
	batch := 0
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			printlnFn("Usage: gc [batch]")
			return errUsage
		}
		batch = n
	}
	res, err := a.files.Collect(ctx, batch)
	if err != nil {
		printlnFn("GC failed:", err)
		return err
	}
	printlnFn(fmt.Sprintf("Collected %d row(s): %d blob(s) deleted, %d retained", res.Rows, res.BlobsDeleted, res.BlobsRetained))
	return nil
}
