package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

//SHA256SUM calculates sha256 of file
func SHA256SUM(filePath string) (result string, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer file.Close()
	hash := sha256.New()
	if _, err = io.Copy(hash, file); err != nil {
		return
	}

	result = hex.EncodeToString(hash.Sum(nil))
	return
}

//WaitForFile waits up to timeout for filePath to exist.
//Mounts like the extra-apk one may race payload start, so a plain
//stat is tried first and fsnotify covers the window after it.
func WaitForFile(filePath string, timeout time.Duration) error {
	if _, err := os.Stat(filePath); err == nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	dir := filepath.Dir(filePath)
	for {
		if err = watcher.Add(dir); err == nil {
			break
		}
		//parent may not exist yet either, walk up
		next := filepath.Dir(dir)
		if next == dir {
			return err
		}
		dir = next
	}
	//the file may have appeared between the stat and the watch
	if _, err := os.Stat(filePath); err == nil {
		return nil
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-watcher.Events:
			if _, err := os.Stat(filePath); err == nil {
				return nil
			}
		case err := <-watcher.Errors:
			return err
		case <-deadline.C:
			return os.ErrNotExist
		}
	}
}
