//go:build mage

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// locCount holds production and test line counts for one directory.
type locCount struct {
	Prod int `json:"prod"`
	Test int `json:"test"`
}

// Stats prints Go lines of code per top-level directory as JSON, followed
// by the totals.
func Stats() error {
	byDir := map[string]*locCount{}
	var total locCount

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path == "vendor" || path == ".git" || path == binaryDir || strings.HasPrefix(info.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		// Skip magefiles; they are build tooling, not project code.
		if !strings.HasSuffix(path, ".go") || strings.HasPrefix(path, "magefiles") {
			return nil
		}
		count, countErr := countLines(path)
		if countErr != nil {
			return nil
		}

		dir := filepath.Dir(path)
		c, ok := byDir[dir]
		if !ok {
			c = &locCount{}
			byDir[dir] = c
		}
		if strings.HasSuffix(path, "_test.go") {
			c.Test += count
			total.Test += count
		} else {
			c.Prod += count
			total.Prod += count
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		line, err := json.Marshal(map[string]any{"dir": d, "go_loc_prod": byDir[d].Prod, "go_loc_test": byDir[d].Test})
		if err != nil {
			return err
		}
		fmt.Println(string(line))
	}
	fmt.Printf("Lines of code (Go, production): %d\n", total.Prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", total.Test)
	fmt.Printf("Lines of code (Go, total):      %d\n", total.Prod+total.Test)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
