package moderation

import (
	"bizlink/errors"
	"bufio"
	"bytes"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Dictionary is the result of loading a folder of word lists, one file per
// language ("fr.txt", "en.txt").
type Dictionary struct {
	Words     []string
	Languages []string
}

var ErrEmptyDictionary = errors.Validation("no censored words found")

// LoadDictionary reads every .txt file of dir and merges their lines into a
// deduplicated word list.
func LoadDictionary(fsys fs.FS, dir string) (Dictionary, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return Dictionary{}, err
	}

	var languages []string
	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return Dictionary{}, err
		}
		// bufio handles \r\n line endings
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				unique[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return Dictionary{}, err
		}
	}

	if len(unique) == 0 {
		return Dictionary{}, ErrEmptyDictionary
	}
	words := lo.Keys(unique)
	slices.Sort(words)
	return Dictionary{Words: words, Languages: languages}, nil
}
