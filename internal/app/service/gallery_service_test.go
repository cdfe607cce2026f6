package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"capturesque/internal/app/thumbnail"
	"capturesque/internal/common"
	"capturesque/internal/common/fspath"
	"capturesque/internal/platform/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGallery(t *testing.T) (*GalleryService, string) {
	t.Helper()
	root := t.TempDir()
	thumbs, err := thumbnail.New(t.TempDir(), 32, logging.Discard())
	require.NoError(t, err)
	paths := fspath.NewResolver(root, []string{"png", "jpg", "jpeg", "gif"})
	return NewGalleryService(paths, thumbs, logging.Discard()), root
}

func upload(name, body string) Upload {
	return Upload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func touch(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestGallery_CreateListDeleteRoundTrip(t *testing.T) {
	g, _ := newGallery(t)
	ctx := context.Background()

	_, err := g.CreateFolder(ctx, "A")
	require.NoError(t, err)
	rel, err := g.CreateFolder(ctx, "A/B")
	require.NoError(t, err)
	assert.Equal(t, "A/B", rel)

	names, err := g.ListFolders(ctx, "A")
	require.NoError(t, err)
	assert.Contains(t, names, "B")

	require.NoError(t, g.DeleteFolder(ctx, "A/B"))
	names, err = g.ListFolders(ctx, "A")
	require.NoError(t, err)
	assert.NotContains(t, names, "B")
}

func TestGallery_CreateFolder(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()

	_, err := g.CreateFolder(ctx, "X")
	require.NoError(t, err)

	_, err = g.CreateFolder(ctx, "X")
	assert.ErrorIs(t, err, common.ErrConflict, "retrying a create is a conflict")

	_, err = g.CreateFolder(ctx, "missing/child")
	assert.ErrorIs(t, err, common.ErrInvalidPath)

	touch(t, filepath.Join(root, "file.png"), "x")
	_, err = g.CreateFolder(ctx, "file.png/child")
	assert.ErrorIs(t, err, common.ErrInvalidPath)

	_, err = g.CreateFolder(ctx, "../escape")
	assert.ErrorIs(t, err, common.ErrInvalidPath)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(root), "escape"))

	rel, err := g.CreateFolder(ctx, "My Trip")
	require.NoError(t, err)
	assert.Equal(t, "My_Trip", rel)
	assert.DirExists(t, filepath.Join(root, "My_Trip"))
}

func TestGallery_ListFolders(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()

	require.NoError(t, os.Mkdir(filepath.Join(root, "b"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "My Trip"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, ".cache"), 0o755))
	touch(t, filepath.Join(root, "c.png"), "x")

	names, err := g.ListFolders(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = g.ListFolders(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = g.ListFolders(ctx, "c.png")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGallery_DeleteRootRefused(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()
	touch(t, filepath.Join(root, "keep.png"), "x")

	for _, p := range []string{"", "/", "//", "a/.."} {
		err := g.DeleteFolder(ctx, p)
		assert.ErrorIs(t, err, common.ErrInvalidPath, "path %q", p)
	}
	assert.FileExists(t, filepath.Join(root, "keep.png"))
}

func TestGallery_DeleteFolderMissing(t *testing.T) {
	g, _ := newGallery(t)
	err := g.DeleteFolder(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGallery_DeleteFolderRecursive(t *testing.T) {
	g, root := newGallery(t)
	touch(t, filepath.Join(root, "A", "B", "c.png"), "x")

	require.NoError(t, g.DeleteFolder(context.Background(), "A"))
	assert.NoDirExists(t, filepath.Join(root, "A"))
}

func TestGallery_RenameFolder(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()
	touch(t, filepath.Join(root, "A", "old", "p.png"), "x")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "A", "taken"), 0o755))

	_, err := g.RenameFolder(ctx, "A/old", "taken")
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.FileExists(t, filepath.Join(root, "A", "old", "p.png"))

	_, err = g.RenameFolder(ctx, "A/ghost", "fresh")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = g.RenameFolder(ctx, "", "x")
	assert.ErrorIs(t, err, common.ErrInvalidPath)

	_, err = g.RenameFolder(ctx, "A/old", "..")
	assert.ErrorIs(t, err, common.ErrInvalidPath)

	_, err = g.RenameFolder(ctx, "A/old", "  ")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	rel, err := g.RenameFolder(ctx, "A/old", "New Name")
	require.NoError(t, err)
	assert.Equal(t, "A/New_Name", rel)
	assert.FileExists(t, filepath.Join(root, "A", "New_Name", "p.png"))
	assert.NoDirExists(t, filepath.Join(root, "A", "old"))
}

func TestGallery_UploadPartialBatch(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()
	require.NoError(t, os.Mkdir(filepath.Join(root, "A"), 0o755))

	res, err := g.UploadFiles(ctx, "A", []Upload{
		upload("one.png", "1"),
		upload("notes.txt", "2"),
		upload("Two Photo.JPG", "3"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one.png", "Two_Photo.JPG"}, res.Files)
	assert.Equal(t, []string{"notes.txt"}, res.Skipped)

	assert.FileExists(t, filepath.Join(root, "A", "one.png"))
	assert.FileExists(t, filepath.Join(root, "A", "Two_Photo.JPG"))
	assert.NoFileExists(t, filepath.Join(root, "A", "notes.txt"))

	entries, err := os.ReadDir(filepath.Join(root, "A"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestGallery_UploadOverwritesSilently(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()
	touch(t, filepath.Join(root, "a.png"), "old")

	_, err := g.UploadFiles(ctx, "", []Upload{upload("a.png", "new")})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestGallery_UploadFailures(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()
	require.NoError(t, os.Mkdir(filepath.Join(root, "A"), 0o755))

	res, err := g.UploadFiles(ctx, "A", []Upload{upload("x.exe", "1"), upload("..", "2")})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	require.NotNil(t, res)
	assert.Equal(t, []string{"x.exe", ".."}, res.Skipped)
	assert.Empty(t, res.Files)

	_, err = g.UploadFiles(ctx, "A", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = g.UploadFiles(ctx, "missing", []Upload{upload("a.png", "1")})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = g.UploadFiles(ctx, "../A", []Upload{upload("a.png", "1")})
	assert.ErrorIs(t, err, common.ErrInvalidPath)
}

func TestGallery_ListImagesRecursive(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()

	touch(t, filepath.Join(root, "A", "b.png"), "x")
	touch(t, filepath.Join(root, "A", "a.jpg"), "x")
	touch(t, filepath.Join(root, "A", "Sub", "c.gif"), "x")
	touch(t, filepath.Join(root, "A", "Sub", "skip.txt"), "x")
	touch(t, filepath.Join(root, "A", "My-Pics", "d.png"), "x")
	touch(t, filepath.Join(root, "A", "My Pics", "e.png"), "x")
	touch(t, filepath.Join(root, "A", ".hidden.png"), "x")
	touch(t, filepath.Join(root, "A", "Sub", "beach day.png"), "x")

	recs, err := g.ListImagesRecursive(ctx, "A", "http://example.com/")
	require.NoError(t, err)

	var names []string
	for _, r := range recs {
		names = append(names, r.Name)
	}
	// Depth-first, lexical within each directory; names the resolver would
	// rewrite are left out.
	assert.Equal(t, []string{"d.png", "c.gif", "a.jpg", "b.png"}, names)

	d := recs[0]
	assert.Equal(t, "http://example.com/api/image/A/My-Pics/d.png", d.URL)
	assert.Equal(t, "http://example.com/api/thumb/A/My-Pics/d.png", d.Thumbnail)
	assert.Equal(t, "http://example.com/api/download/A/My-Pics/d.png", d.Download)
	assert.NotEmpty(t, d.ID)

	again, err := g.ListImagesRecursive(ctx, "A", "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, recs[0].ID, again[0].ID, "ids are stable")

	empty, err := g.ListImagesRecursive(ctx, "A/Sub/..", "http://x")
	assert.ErrorIs(t, err, common.ErrInvalidPath)
	assert.Nil(t, empty)

	_, err = g.ListImagesRecursive(ctx, "ghost", "http://x")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGallery_OpenFile(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()
	touch(t, filepath.Join(root, "A", "pic.png"), "pngdata")
	touch(t, filepath.Join(root, "top.jpg"), "jpg")

	fi, err := g.OpenFile(ctx, "A", "pic.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", fi.ContentType)
	assert.Equal(t, int64(7), fi.Size)

	fi, err = g.OpenFile(ctx, "", "top.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", fi.ContentType)

	_, err = g.OpenFile(ctx, "A", "ghost.png")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = g.OpenFile(ctx, "..", "pic.png")
	assert.ErrorIs(t, err, common.ErrInvalidPath)

	_, err = g.OpenFile(ctx, "A", "secret.txt")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestGallery_DeleteFile(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()
	touch(t, filepath.Join(root, "A", "pic.png"), "x")

	require.NoError(t, g.DeleteFile(ctx, "A", "pic.png"))
	assert.NoFileExists(t, filepath.Join(root, "A", "pic.png"))

	err := g.DeleteFile(ctx, "A", "pic.png")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGallery_RenameFile(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()
	touch(t, filepath.Join(root, "A", "x.png"), "x")
	touch(t, filepath.Join(root, "A", "y.png"), "y")

	_, err := g.RenameFile(ctx, "A", "x.png", "y.png")
	assert.ErrorIs(t, err, common.ErrConflict)
	for name, want := range map[string]string{"x.png": "x", "y.png": "y"} {
		got, readErr := os.ReadFile(filepath.Join(root, "A", name))
		require.NoError(t, readErr)
		assert.Equal(t, want, string(got), "%s untouched after conflicting rename", name)
	}

	_, err = g.RenameFile(ctx, "A", "x.png", "x.exe")
	assert.ErrorIs(t, err, common.ErrInvalidInput, "rename cannot introduce a disallowed extension")

	_, err = g.RenameFile(ctx, "A", "ghost.png", "z.png")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = g.RenameFile(ctx, "A", "", "z.png")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	name, err := g.RenameFile(ctx, "A", "x.png", "z z.png")
	require.NoError(t, err)
	assert.Equal(t, "z_z.png", name)
	assert.FileExists(t, filepath.Join(root, "A", "z_z.png"))
	assert.NoFileExists(t, filepath.Join(root, "A", "x.png"))
}

func TestGallery_Thumbnail(t *testing.T) {
	g, root := newGallery(t)
	ctx := context.Background()

	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	touch(t, filepath.Join(root, "A", "pic.png"), buf.String())
	touch(t, filepath.Join(root, "A", "broken.png"), "nope")

	fi, err := g.Thumbnail(ctx, "A", "pic.png")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", fi.ContentType)
	assert.Equal(t, "pic.jpg", fi.Name)
	assert.False(t, strings.HasPrefix(fi.AbsPath, root), "thumbnails live outside the gallery root")

	_, err = g.Thumbnail(ctx, "A", "broken.png")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = g.Thumbnail(ctx, "A", "ghost.png")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
