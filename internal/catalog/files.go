// Package catalog reads quiz definitions from YAML or JSON files.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

// ReadFile parses and validates one quiz file. The format follows the
// extension: .json is JSON, .yaml and .yml are YAML.
func ReadFile(path string) (domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Quiz{}, err
	}
	var quiz domain.Quiz
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &quiz)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &quiz)
	default:
		return domain.Quiz{}, fmt.Errorf("%s: unsupported quiz file type", path)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidQuiz, path, err)
	}
	if quiz.ID == "" {
		quiz.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, fmt.Errorf("%s: %w", path, err)
	}
	return quiz, nil
}

// ReadDir parses every quiz file in dir, sorted by file name. Quiz ids must
// be unique across the directory.
func ReadDir(dir string) ([]domain.Quiz, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	quizzes := make([]domain.Quiz, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		quiz, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[quiz.ID]; ok {
			return nil, fmt.Errorf("%w: quiz id %q defined in %s and %s", domain.ErrInvalidQuiz, quiz.ID, prev, name)
		}
		seen[quiz.ID] = name
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}

// LoadDir reads dir into a loader usable by the quiz caches.
func LoadDir(dir string) (*memory.StaticQuizLoader, error) {
	quizzes, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	loader := memory.NewStaticQuizLoader(nil)
	for _, q := range quizzes {
		loader.Put(q)
	}
	return loader, nil
}
