// Package kv implements a store that keeps its whole tree inside a key/value
// database. Every node has a metadata record under ("meta", path); file
// contents are split into compressed blocks under ("blk", content-id, index).
// Renames therefore only move metadata records.
package kv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	e "github.com/pkg/errors"
	ie "github.com/sahib/fsh/errors"
	"github.com/sahib/fsh/fs"
	yaml "gopkg.in/yaml.v2"
)

const (
	// DefaultBlockSize is the uncompressed size of a content block.
	DefaultBlockSize = 64 * 1024

	metaBucket  = "meta"
	blockBucket = "blk"
)

type record struct {
	IsDir       bool   `yaml:"is_dir"`
	Size        int64  `yaml:"size"`
	Perm        uint32 `yaml:"perm"`
	Owner       string `yaml:"owner"`
	Group       string `yaml:"group"`
	ModTime     int64  `yaml:"mod_time"`
	Content     string `yaml:"content,omitempty"`
	Blocks      int    `yaml:"blocks,omitempty"`
	Compression string `yaml:"compression,omitempty"`
}

// Backend is a FilesystemClient on top of a Database.
type Backend struct {
	// mu is shared with all AsUser views.
	mu *sync.RWMutex

	db         Database
	algoName   string
	blockSize  int
	user       string
	superuser  string
	homePrefix string
}

// Options control how a Backend stores its data.
type Options struct {
	// Compression is one of ValidAlgorithms(). Defaults to snappy.
	Compression string
	// BlockSize is the size of a single content block.
	BlockSize int
	// User owns all newly created nodes. If set, only the owner of a node
	// or the superuser may change its mode or ownership.
	User string
	// Superuser may change mode and ownership of every node.
	Superuser string
	// HomePrefix is the parent of all home directories.
	HomePrefix string
}

// Open opens a badger database at `dir` and returns a Backend for it.
func Open(dir string, opts Options) (*Backend, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := NewBadgerDatabase(dir)
	if err != nil {
		return nil, e.Wrapf(err, "failed to open kv store at %s", dir)
	}

	bk, err := New(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}

	return bk, nil
}

// New returns a Backend for `db` and creates the root node if needed.
func New(db Database, opts Options) (*Backend, error) {
	if opts.Compression == "" {
		opts.Compression = string(AlgoSnappy)
	}

	if _, err := AlgorithmFromName(opts.Compression); err != nil {
		return nil, e.Wrapf(err, "%q", opts.Compression)
	}

	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}

	if opts.HomePrefix == "" {
		opts.HomePrefix = fs.DefaultHomePrefix
	}

	bk := &Backend{
		mu:         &sync.RWMutex{},
		db:         db,
		algoName:   opts.Compression,
		blockSize:  opts.BlockSize,
		user:       opts.User,
		superuser:  opts.Superuser,
		homePrefix: opts.HomePrefix,
	}

	if _, err := bk.getRecord("/"); ie.IsNotFound(err) {
		batch := db.Batch()
		if err := bk.putRecord(batch, "/", bk.newRecord(true, 0777)); err != nil {
			batch.Rollback()
			return nil, err
		}

		if err := batch.Flush(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return bk, nil
}

// AsUser returns a view on the same database that creates nodes as `user`.
func (bk *Backend) AsUser(user string) fs.FilesystemClient {
	view := *bk
	view.user = user
	return &view
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}

func (bk *Backend) newRecord(isDir bool, perm os.FileMode) *record {
	return &record{
		IsDir:   isDir,
		Perm:    uint32(perm.Perm()),
		Owner:   bk.user,
		Group:   bk.user,
		ModTime: time.Now().UnixNano(),
	}
}

func (bk *Backend) getRecord(p string) (*record, error) {
	data, err := bk.db.Get(metaBucket, p)
	if err == ErrNoSuchKey {
		return nil, ie.NotFound(p)
	}

	if err != nil {
		return nil, err
	}

	rec := &record{}
	if err := yaml.Unmarshal(data, rec); err != nil {
		return nil, e.Wrapf(err, "broken record at %s", p)
	}

	return rec, nil
}

func (bk *Backend) putRecord(batch Batch, p string, rec *record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}

	batch.Put(data, metaBucket, p)
	return nil
}

func toStatus(p string, rec *record) *fs.FileStatus {
	return &fs.FileStatus{
		Path:       p,
		Length:     rec.Size,
		IsDir:      rec.IsDir,
		Permission: os.FileMode(rec.Perm).Perm(),
		Owner:      rec.Owner,
		Group:      rec.Group,
		ModTime:    time.Unix(0, rec.ModTime),
	}
}

// descendants returns the paths of all nodes below `p`, in lexical order.
func (bk *Backend) descendants(p string) ([]string, error) {
	prefix := p + "/"
	if p == "/" {
		prefix = "/"
	}

	keys, err := bk.db.Keys(metaBucket, prefix)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(keys))
	for _, key := range keys {
		if len(key) != 2 || key[1] == "/" {
			continue
		}

		paths = append(paths, key[1])
	}

	return paths, nil
}

// Stat implements fs.FilesystemClient.Stat
func (bk *Backend) Stat(ctx context.Context, p string) (*fs.FileStatus, error) {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	p = cleanPath(p)
	rec, err := bk.getRecord(p)
	if err != nil {
		return nil, err
	}

	return toStatus(p, rec), nil
}

// List implements fs.FilesystemClient.List
func (bk *Backend) List(ctx context.Context, p string) ([]fs.FileStatus, error) {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	p = cleanPath(p)
	rec, err := bk.getRecord(p)
	if err != nil {
		return nil, err
	}

	if !rec.IsDir {
		return []fs.FileStatus{*toStatus(p, rec)}, nil
	}

	children, err := bk.descendants(p)
	if err != nil {
		return nil, err
	}

	entries := []fs.FileStatus{}
	for _, child := range children {
		if path.Dir(child) != p {
			continue
		}

		childRec, err := bk.getRecord(child)
		if err != nil {
			return nil, err
		}

		entries = append(entries, *toStatus(child, childRec))
	}

	return entries, nil
}

// mkdirs adds records for all missing directories up to `p` to `batch`.
func (bk *Backend) mkdirs(batch Batch, p string, perm os.FileMode) error {
	curr := "/"
	for _, elem := range strings.Split(strings.Trim(p, "/"), "/") {
		if elem == "" {
			continue
		}

		curr = path.Join(curr, elem)
		rec, err := bk.getRecord(curr)
		if err == nil {
			if !rec.IsDir {
				return ie.AlreadyExists(curr)
			}

			continue
		}

		if !ie.IsNotFound(err) {
			return err
		}

		if err := bk.putRecord(batch, curr, bk.newRecord(true, perm)); err != nil {
			return err
		}
	}

	return nil
}

// Mkdirs implements fs.FilesystemClient.Mkdirs
func (bk *Backend) Mkdirs(ctx context.Context, p string, perm os.FileMode) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	batch := bk.db.Batch()
	if err := bk.mkdirs(batch, cleanPath(p), perm); err != nil {
		batch.Rollback()
		return err
	}

	return batch.Flush()
}

func blockKey(idx int) string {
	return fmt.Sprintf("%08d", idx)
}

func (bk *Backend) eraseContent(batch Batch, rec *record) {
	if rec.IsDir || rec.Content == "" {
		return
	}

	for idx := 0; idx < rec.Blocks; idx++ {
		batch.Erase(blockBucket, rec.Content, blockKey(idx))
	}
}

// Create implements fs.FilesystemClient.Create
func (bk *Backend) Create(ctx context.Context, p string, r io.Reader, overwrite bool) (int64, error) {
	p = cleanPath(p)
	if p == "/" {
		return 0, ie.IsADirectory(p)
	}

	algo, err := AlgorithmFromName(bk.algoName)
	if err != nil {
		return 0, err
	}

	bk.mu.Lock()
	defer bk.mu.Unlock()

	old, err := bk.getRecord(p)
	if err != nil && !ie.IsNotFound(err) {
		return 0, err
	}

	if old != nil {
		if old.IsDir {
			return 0, ie.IsADirectory(p)
		}

		if !overwrite {
			return 0, ie.AlreadyExists(p)
		}
	}

	batch := bk.db.Batch()
	if err := bk.mkdirs(batch, path.Dir(p), fs.DefaultDirPerm); err != nil {
		batch.Rollback()
		return 0, err
	}

	rec := bk.newRecord(false, 0644)
	rec.Content = uuid.New().String()
	rec.Compression = bk.algoName

	buf := make([]byte, bk.blockSize)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			block, err := algo.Encode(buf[:n])
			if err != nil {
				batch.Rollback()
				return 0, err
			}

			// Encode may return `buf` itself; the batch keeps a reference.
			batch.Put(append([]byte(nil), block...), blockBucket, rec.Content, blockKey(rec.Blocks))
			rec.Blocks++
			rec.Size += int64(n)
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}

		if readErr != nil {
			batch.Rollback()
			return 0, e.Wrap(readErr, "read input")
		}
	}

	if err := bk.putRecord(batch, p, rec); err != nil {
		batch.Rollback()
		return 0, err
	}

	if old != nil {
		bk.eraseContent(batch, old)
	}

	if err := batch.Flush(); err != nil {
		return 0, err
	}

	return rec.Size, nil
}

type blockReader struct {
	bk    *Backend
	algo  Algorithm
	rec   *record
	idx   int
	block *bytes.Reader
}

func (br *blockReader) Read(buf []byte) (int, error) {
	for br.block == nil || br.block.Len() == 0 {
		if br.idx >= br.rec.Blocks {
			return 0, io.EOF
		}

		raw, err := br.bk.db.Get(blockBucket, br.rec.Content, blockKey(br.idx))
		if err != nil {
			return 0, e.Wrapf(err, "block %d", br.idx)
		}

		data, err := br.algo.Decode(raw)
		if err != nil {
			return 0, e.Wrapf(err, "decode block %d", br.idx)
		}

		br.block = bytes.NewReader(data)
		br.idx++
	}

	return br.block.Read(buf)
}

func (br *blockReader) Close() error {
	return nil
}

// Open implements fs.FilesystemClient.Open
func (bk *Backend) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	bk.mu.RLock()
	defer bk.mu.RUnlock()

	p = cleanPath(p)
	rec, err := bk.getRecord(p)
	if err != nil {
		return nil, err
	}

	if rec.IsDir {
		return nil, ie.IsADirectory(p)
	}

	algo, err := AlgorithmFromName(rec.Compression)
	if err != nil {
		return nil, err
	}

	return &blockReader{bk: bk, algo: algo, rec: rec}, nil
}

// Delete implements fs.FilesystemClient.Delete
func (bk *Backend) Delete(ctx context.Context, p string, recursive bool) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	p = cleanPath(p)
	if p == "/" {
		return ie.ErrRoot
	}

	rec, err := bk.getRecord(p)
	if err != nil {
		return err
	}

	children, err := bk.descendants(p)
	if err != nil {
		return err
	}

	if len(children) > 0 && !recursive {
		return e.Wrap(ie.ErrNotEmpty, p)
	}

	batch := bk.db.Batch()
	for _, child := range children {
		childRec, err := bk.getRecord(child)
		if err != nil {
			batch.Rollback()
			return err
		}

		bk.eraseContent(batch, childRec)
		batch.Erase(metaBucket, child)
	}

	bk.eraseContent(batch, rec)
	batch.Erase(metaBucket, p)
	return batch.Flush()
}

// Rename implements fs.FilesystemClient.Rename
func (bk *Backend) Rename(ctx context.Context, src, dst string) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	src, dst = cleanPath(src), cleanPath(dst)
	if src == "/" {
		return ie.ErrRoot
	}

	if strings.HasPrefix(dst, src+"/") {
		return e.Errorf("cannot move %s below itself (%s)", src, dst)
	}

	rec, err := bk.getRecord(src)
	if err != nil {
		return err
	}

	if _, err := bk.getRecord(dst); err == nil {
		return ie.AlreadyExists(dst)
	} else if !ie.IsNotFound(err) {
		return err
	}

	parent, err := bk.getRecord(path.Dir(dst))
	if err != nil {
		return err
	}

	if !parent.IsDir {
		return e.Wrap(ie.ErrNotADirectory, path.Dir(dst))
	}

	children, err := bk.descendants(src)
	if err != nil {
		return err
	}

	batch := bk.db.Batch()
	for _, child := range children {
		childRec, err := bk.getRecord(child)
		if err != nil {
			batch.Rollback()
			return err
		}

		if err := bk.putRecord(batch, dst+strings.TrimPrefix(child, src), childRec); err != nil {
			batch.Rollback()
			return err
		}

		batch.Erase(metaBucket, child)
	}

	if err := bk.putRecord(batch, dst, rec); err != nil {
		batch.Rollback()
		return err
	}

	batch.Erase(metaBucket, src)
	return batch.Flush()
}

func (bk *Backend) isSuperuser() bool {
	return bk.user == "" || bk.user == bk.superuser
}

func (bk *Backend) update(p string, fn func(rec *record) error) error {
	bk.mu.Lock()
	defer bk.mu.Unlock()

	p = cleanPath(p)
	rec, err := bk.getRecord(p)
	if err != nil {
		return err
	}

	if err := fn(rec); err != nil {
		return err
	}

	batch := bk.db.Batch()
	if err := bk.putRecord(batch, p, rec); err != nil {
		batch.Rollback()
		return err
	}

	return batch.Flush()
}

// SetPermission implements fs.FilesystemClient.SetPermission
func (bk *Backend) SetPermission(ctx context.Context, p string, perm os.FileMode) error {
	return bk.update(p, func(rec *record) error {
		if !bk.isSuperuser() && rec.Owner != bk.user {
			return ie.PermissionDenied(p, "not the owner")
		}

		rec.Perm = uint32(perm.Perm())
		return nil
	})
}

// SetOwner implements fs.FilesystemClient.SetOwner
func (bk *Backend) SetOwner(ctx context.Context, p string, owner, group string) error {
	return bk.update(p, func(rec *record) error {
		if owner != "" && owner != rec.Owner && !bk.isSuperuser() {
			return ie.PermissionDenied(p, "only the superuser may change the owner")
		}

		if group != "" && rec.Owner != bk.user && !bk.isSuperuser() {
			return ie.PermissionDenied(p, "not the owner")
		}

		if owner != "" {
			rec.Owner = owner
		}

		if group != "" {
			rec.Group = group
		}

		return nil
	})
}

// HomeDirectory implements fs.FilesystemClient.HomeDirectory
func (bk *Backend) HomeDirectory(ctx context.Context, user string) (string, error) {
	return path.Join(bk.homePrefix, user), nil
}

// Close implements fs.FilesystemClient.Close
func (bk *Backend) Close() error {
	return bk.db.Close()
}
