// Package corpus reads the local implementation-guide directory: the desired
// state the reconciler pushes to the store.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

// DefaultDir is the conventional corpus directory name.
const DefaultDir = "implementationGuides"

// Load reads every .json file directly under dir and one level below it, in
// each implementation-guide subdirectory. Keys are slash-separated and start
// with the base name of dir, e.g. "implementationGuides/us-core/.index.json".
// Deeper files are ignored. Objects are sorted by key.
func Load(dir string) ([]store.Object, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("implementation guide directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("implementation guide directory %s is not a directory", dir)
	}

	root := filepath.Base(filepath.Clean(dir))
	var objects []store.Object

	top, err := readJSONFiles(dir, root)
	if err != nil {
		return nil, err
	}
	objects = append(objects, top...)

	igDirs, err := listIGDirs(dir)
	if err != nil {
		return nil, err
	}
	for _, ig := range igDirs {
		files, err := readJSONFiles(filepath.Join(dir, ig), path.Join(root, ig))
		if err != nil {
			return nil, err
		}
		objects = append(objects, files...)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// listIGDirs returns the names of subdirectories of dir, following symlinks.
func listIGDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if isDir(dir, e) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func isDir(parent string, e fs.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && info.IsDir()
}

func readJSONFiles(dir, keyPrefix string) ([]store.Object, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var objects []store.Object
	for _, e := range entries {
		if isDir(dir, e) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		objects = append(objects, store.Object{Key: path.Join(keyPrefix, e.Name()), Content: data})
	}
	return objects, nil
}
