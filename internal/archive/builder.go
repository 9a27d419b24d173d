package archive

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"

	"github.com/klauspost/compress/zip"

	"cargo-kelvin/internal/errdefs"
	"cargo-kelvin/internal/workspace"
)

const (
	FileName     = "submit.zip"
	WarningEmpty = "archive contains no files"
)

// Archive is a finished ZIP held in memory.
type Archive struct {
	Data     []byte
	Files    int
	Warnings []string
}

func (a *Archive) Empty() bool {
	return a.Files == 0
}

type Builder struct {
	tempDir string
}

// NewBuilder stages archives in tempDir, or os.TempDir when empty.
func NewBuilder(tempDir string) *Builder {
	return &Builder{tempDir: tempDir}
}

func (b *Builder) Build(ctx context.Context, files []workspace.ProjectFile) (*Archive, error) {
	return b.BuildSeq(ctx, func(yield func(workspace.ProjectFile, error) bool) {
		for _, f := range files {
			if !yield(f, nil) {
				return
			}
		}
	})
}

// BuildSeq writes every file of seq as a deflated entry. Errors yielded by
// seq are returned as they are.
func (b *Builder) BuildSeq(ctx context.Context, seq iter.Seq2[workspace.ProjectFile, error]) (arc *Archive, err error) {
	tmp, err := os.CreateTemp(b.tempDir, "kelvin-submit-*.zip")
	if err != nil {
		return nil, errdefs.Archive("create temp file", err)
	}
	defer func() {
		if cerr := tmp.Close(); cerr != nil && err == nil {
			arc, err = nil, errdefs.Archive("close temp file", cerr)
		}
		if rerr := os.Remove(tmp.Name()); rerr != nil && !os.IsNotExist(rerr) {
			slog.Warn("failed to remove temp archive", "path", tmp.Name(), "err", rerr)
		}
	}()

	zw := zip.NewWriter(tmp)
	count := 0
	for f, serr := range seq {
		if serr != nil {
			return nil, serr
		}
		if cerr := ctx.Err(); cerr != nil {
			return nil, errdefs.Archive("build interrupted", cerr)
		}
		if err := writeEntry(zw, f); err != nil {
			return nil, err
		}
		count++
	}
	if err := zw.Close(); err != nil {
		return nil, errdefs.Archive("finish archive", err)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, errdefs.Archive("rewind temp file", err)
	}
	data, err := io.ReadAll(tmp)
	if err != nil {
		return nil, errdefs.Archive("read temp file", err)
	}

	a := &Archive{Data: data, Files: count}
	if a.Empty() {
		a.Warnings = append(a.Warnings, WarningEmpty)
		slog.Warn(WarningEmpty)
	}
	suffix := "s"
	if count == 1 {
		suffix = ""
	}
	slog.Info(fmt.Sprintf("compressed %d file%s", count, suffix), "bytes", len(data))
	return a, nil
}

func writeEntry(zw *zip.Writer, f workspace.ProjectFile) error {
	r, err := f.Open()
	if err != nil {
		return errdefs.Archive("open "+f.Path, err)
	}
	defer r.Close()

	// Modified stays zero so identical trees give identical archives.
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   f.Path,
		Method: zip.Deflate,
	})
	if err != nil {
		return errdefs.Archive("add "+f.Path, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return errdefs.Archive("write "+f.Path, err)
	}
	return nil
}
