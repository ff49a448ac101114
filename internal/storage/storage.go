// Package storage はアップロード・インポートされた文書ファイルの保存先を提供する。
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrInvalidKey はキーが保存先ディレクトリの外を指す場合を表す。
var ErrInvalidKey = errors.New("invalid storage key")

// Storage は文書ファイルの保存先。
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete はkeyのファイルを削除する。存在しない場合もnilを返す。
	Delete(ctx context.Context, key string) error
}

// DocumentKey はユーザーごとの文書キー documents/{userID}/{uuid}-{name} を生成する。
// nameはパス区切りや制御文字を除いたファイル名に正規化する。
func DocumentKey(userID int64, name string) string {
	return path.Join("documents", strconv.FormatInt(userID, 10), uuid.NewString()+"-"+sanitizeName(name))
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r), r == '/', r == ':':
			return -1
		case unicode.IsSpace(r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "file"
	}
	if r := []rune(name); len(r) > 128 {
		name = string(r[len(r)-128:])
	}
	return name
}

// FileSystem はローカルディレクトリに保存するStorage。
type FileSystem struct {
	root      string
	publicURL string
}

// NewFileSystem はrootディレクトリに保存するFileSystemを生成する。
// publicURLが空の場合、Putはキーをそのまま返す。
func NewFileSystem(root, publicURL string) *FileSystem {
	return &FileSystem{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Put はdataをkeyの位置に書き込み、参照用のURLを返す。
func (fs *FileSystem) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target, err := fs.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// 途中までの書き込みが見えないよう一時ファイルからリネームする
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move file: %w", err)
	}

	if fs.publicURL == "" {
		return key, nil
	}
	return fs.publicURL + "/" + key, nil
}

// Delete はkeyの位置のファイルを削除する。既に存在しない場合はnilを返す。
func (fs *FileSystem) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := fs.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve はキーをroot配下の絶対パスに変換する。
func (fs *FileSystem) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", ErrInvalidKey
	}

	root, err := filepath.Abs(fs.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve storage root: %w", err)
	}
	target := filepath.Join(root, filepath.FromSlash(cleaned))
	if !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return target, nil
}
