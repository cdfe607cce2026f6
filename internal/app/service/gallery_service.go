package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"capturesque/internal/app/thumbnail"
	"capturesque/internal/common"
	"capturesque/internal/common/fspath"
	"capturesque/internal/domain/model"

	"github.com/google/uuid"
)

// Upload is one incoming file of a multipart batch.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// GalleryService implements folder and file operations over the gallery
// root. Every client-supplied name passes through the resolver first.
type GalleryService struct {
	paths  *fspath.Resolver
	thumbs *thumbnail.Generator
	log    *slog.Logger
}

func NewGalleryService(paths *fspath.Resolver, thumbs *thumbnail.Generator, log *slog.Logger) *GalleryService {
	return &GalleryService{paths: paths, thumbs: thumbs, log: log}
}

// ListFolders returns the names of the immediate subdirectories of folder,
// sorted by name. Folders whose on-disk name the resolver would rewrite are
// left out, since no request could reach them.
func (s *GalleryService) ListFolders(ctx context.Context, folder string) ([]string, error) {
	dir, err := s.existingDir(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.Errorf("read folder: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if !addressable(e.Name()) {
			s.log.DebugContext(ctx, "folder not addressable, omitted from listing", "name", e.Name())
			continue
		}
		names = append(names, e.Name())
	}
	return names, ctx.Err()
}

// ListImagesRecursive walks folder depth-first, entries of each directory in
// lexical order, and returns one record per allow-listed file. Entries whose
// names are not addressable are skipped along with everything below them.
// baseURL is the scheme://host the URLs are built on.
func (s *GalleryService) ListImagesRecursive(ctx context.Context, folder, baseURL string) ([]model.ImageRecord, error) {
	dir, err := s.existingDir(folder)
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(baseURL, "/")

	records := []model.ImageRecord{}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != dir && !addressable(d.Name()) {
			s.log.DebugContext(ctx, "entry not addressable, omitted from listing", "path", p)
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !s.paths.Allowed(d.Name()) {
			return nil
		}
		rel, err := s.paths.Rel(p)
		if err != nil {
			return err
		}
		escaped := escapePath(rel)
		records = append(records, model.ImageRecord{
			ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte(rel)).String(),
			Name:      d.Name(),
			URL:       base + "/api/image/" + escaped,
			Thumbnail: base + "/api/thumb/" + escaped,
			Download:  base + "/api/download/" + escaped,
		})
		return nil
	})
	if err != nil {
		return nil, common.Errorf("walk folder: %w", err)
	}
	return records, nil
}

// CreateFolder makes exactly one directory; its parent must exist.
func (s *GalleryService) CreateFolder(ctx context.Context, folder string) (string, error) {
	dir, err := s.paths.Resolve(folder)
	if err != nil {
		return "", err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			return "", common.Errorf("folder already exists: %w", common.ErrConflict)
		case errors.Is(err, fs.ErrNotExist), isNotDir(err):
			return "", common.Errorf("parent folder does not exist: %w", common.ErrInvalidPath)
		default:
			return "", common.Errorf("create folder: %w", err)
		}
	}
	rel, _ := s.paths.Rel(dir)
	s.log.InfoContext(ctx, "folder created", "folder", rel)
	return rel, nil
}

// DeleteFolder removes folder and everything below it. The root itself is
// never deleted.
func (s *GalleryService) DeleteFolder(ctx context.Context, folder string) error {
	dir, err := s.paths.Resolve(folder)
	if err != nil {
		return err
	}
	if s.paths.IsRoot(dir) {
		return common.Errorf("the gallery root cannot be deleted: %w", common.ErrInvalidPath)
	}
	if _, err := s.statDir(dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return common.Errorf("delete folder: %w", err)
	}
	rel, _ := s.paths.Rel(dir)
	s.log.InfoContext(ctx, "folder deleted", "folder", rel)
	return nil
}

// RenameFolder renames the last segment of folder to newName, keeping it in
// the same parent. It returns the new relative path.
func (s *GalleryService) RenameFolder(ctx context.Context, folder, newName string) (string, error) {
	src, err := s.paths.Resolve(folder)
	if err != nil {
		return "", err
	}
	if s.paths.IsRoot(src) {
		return "", common.Errorf("the gallery root cannot be renamed: %w", common.ErrInvalidPath)
	}
	if strings.TrimSpace(newName) == "" {
		return "", common.Errorf("new folder name is required: %w", common.ErrInvalidInput)
	}
	dst, _, err := s.paths.Child(filepath.Dir(src), newName)
	if err != nil {
		return "", err
	}
	if _, err := s.statDir(src); err != nil {
		return "", err
	}
	if err := s.ensureAbsent(dst); err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", common.Errorf("rename folder: %w", err)
	}
	oldRel, _ := s.paths.Rel(src)
	newRel, _ := s.paths.Rel(dst)
	s.log.InfoContext(ctx, "folder renamed", "from", oldRel, "to", newRel)
	return newRel, nil
}

// UploadFiles stores every allow-listed file of the batch in folder,
// replacing same-named files. Rejected names are reported in Skipped. When
// nothing was saved the result is returned together with ErrInvalidInput.
func (s *GalleryService) UploadFiles(ctx context.Context, folder string, files []Upload) (*model.UploadResult, error) {
	dir, err := s.existingDir(folder)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, common.Errorf("no files in request: %w", common.ErrInvalidInput)
	}

	result := &model.UploadResult{Files: []string{}, Skipped: []string{}}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := fspath.SanitizeSegment(f.Filename)
		if name == "" || !s.paths.Allowed(name) {
			result.Skipped = append(result.Skipped, f.Filename)
			continue
		}
		target, _, err := s.paths.Child(dir, name)
		if err != nil {
			result.Skipped = append(result.Skipped, f.Filename)
			continue
		}
		if err := writeUpload(dir, target, f); err != nil {
			return nil, common.Errorf("save %s: %w", name, err)
		}
		result.Files = append(result.Files, name)
	}

	rel, _ := s.paths.Rel(dir)
	if len(result.Files) == 0 {
		return result, common.Errorf("no allowed files in upload: %w", common.ErrInvalidInput)
	}
	s.log.InfoContext(ctx, "files uploaded", "folder", rel, "saved", len(result.Files), "skipped", len(result.Skipped))
	return result, nil
}

// OpenFile locates a gallery file for streaming.
func (s *GalleryService) OpenFile(ctx context.Context, folder, name string) (*model.FileInfo, error) {
	abs, clean, err := s.paths.ResolveFile(folder, name)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil || st.IsDir() {
		return nil, common.Errorf("file %s: %w", clean, common.ErrNotFound)
	}
	return &model.FileInfo{
		AbsPath:     abs,
		Name:        clean,
		ContentType: contentTypeFor(clean),
		Size:        st.Size(),
		ModTime:     st.ModTime(),
	}, ctx.Err()
}

// Thumbnail returns the cached JPEG preview of a gallery image.
func (s *GalleryService) Thumbnail(ctx context.Context, folder, name string) (*model.FileInfo, error) {
	fi, err := s.OpenFile(ctx, folder, name)
	if err != nil {
		return nil, err
	}
	rel, err := s.paths.Rel(fi.AbsPath)
	if err != nil {
		return nil, err
	}
	thumbPath, err := s.thumbs.Path(fi.AbsPath, rel, fi.ModTime)
	if err != nil {
		if errors.Is(err, thumbnail.ErrUndecodable) {
			return nil, common.Errorf("%s: %w", err.Error(), common.ErrInvalidInput)
		}
		return nil, common.Errorf("render thumbnail: %w", err)
	}
	st, err := os.Stat(thumbPath)
	if err != nil {
		return nil, common.Errorf("stat thumbnail: %w", err)
	}
	return &model.FileInfo{
		AbsPath:     thumbPath,
		Name:        strings.TrimSuffix(fi.Name, path.Ext(fi.Name)) + ".jpg",
		ContentType: "image/jpeg",
		Size:        st.Size(),
		ModTime:     fi.ModTime,
	}, nil
}

func (s *GalleryService) DeleteFile(ctx context.Context, folder, name string) error {
	fi, err := s.OpenFile(ctx, folder, name)
	if err != nil {
		return err
	}
	if err := os.Remove(fi.AbsPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return common.Errorf("file %s: %w", fi.Name, common.ErrNotFound)
		}
		return common.Errorf("delete file: %w", err)
	}
	rel, _ := s.paths.Rel(fi.AbsPath)
	s.log.InfoContext(ctx, "file deleted", "file", rel)
	return nil
}

// RenameFile renames a file inside folder. Both names must carry an
// allow-listed extension and the destination must not exist.
func (s *GalleryService) RenameFile(ctx context.Context, folder, oldName, newName string) (string, error) {
	if strings.TrimSpace(oldName) == "" || strings.TrimSpace(newName) == "" {
		return "", common.Errorf("old and new file names are required: %w", common.ErrInvalidInput)
	}
	src, _, err := s.paths.ResolveFile(folder, oldName)
	if err != nil {
		return "", err
	}
	dst, clean, err := s.paths.ResolveFile(folder, newName)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(src)
	if err != nil || st.IsDir() {
		return "", common.Errorf("file %s: %w", oldName, common.ErrNotFound)
	}
	if err := s.ensureAbsent(dst); err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", common.Errorf("rename file: %w", err)
	}
	oldRel, _ := s.paths.Rel(src)
	newRel, _ := s.paths.Rel(dst)
	s.log.InfoContext(ctx, "file renamed", "from", oldRel, "to", newRel)
	return clean, nil
}

func (s *GalleryService) existingDir(folder string) (string, error) {
	dir, err := s.paths.Resolve(folder)
	if err != nil {
		return "", err
	}
	return s.statDir(dir)
}

func (s *GalleryService) statDir(dir string) (string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
			return "", common.Errorf("folder: %w", common.ErrNotFound)
		}
		return "", common.Errorf("stat folder: %w", err)
	}
	if !st.IsDir() {
		return "", common.Errorf("not a folder: %w", common.ErrNotFound)
	}
	return dir, nil
}

func (s *GalleryService) ensureAbsent(p string) error {
	_, err := os.Lstat(p)
	if err == nil {
		return common.Errorf("%s already exists: %w", filepath.Base(p), common.ErrConflict)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return common.Errorf("stat destination: %w", err)
	}
	return nil
}

// writeUpload streams into a temp file next to target and renames it into
// place, so readers never observe a half-written image.
func writeUpload(dir, target string, f Upload) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func escapePath(rel string) string {
	segs := strings.Split(rel, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}

// addressable reports whether an on-disk name survives sanitization
// unchanged, i.e. a client can name it in a request path.
func addressable(name string) bool {
	return fspath.SanitizeSegment(name) == name
}
