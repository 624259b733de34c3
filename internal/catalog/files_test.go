package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

const yamlQuiz = `
title: Animals
questions:
  - text: Which animal says meow?
    type: mcq
    options: [cat, dog]
    answer: cat
  - text: Match the sounds
    type: match
    matchPairs:
      - {left: cat, right: meow}
      - {left: dog, right: woof}
`

const jsonQuiz = `{
  "id": "space",
  "title": "Space",
  "questions": [
    {"text": "Pick the gas giants", "type": "selectall", "options": ["Mars", "Jupiter", "Saturn"], "answer": ["Jupiter", "Saturn"], "timerInSeconds": 20}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "animals.yaml", yamlQuiz)
	writeFile(t, dir, "space.json", jsonQuiz)
	writeFile(t, dir, "README.md", "ignored")

	loader, err := LoadDir(dir)
	require.NoError(t, err)

	animals, err := loader.LoadQuiz(context.Background(), "animals")
	require.NoError(t, err)
	assert.Equal(t, "Animals", animals.Title)
	assert.Equal(t, "meow", animals.Questions[1].CorrectMapping()["cat"])

	space, err := loader.LoadQuiz(context.Background(), "space")
	require.NoError(t, err)
	assert.Equal(t, 20, space.Questions[0].Timer())
	assert.ElementsMatch(t, []string{"Jupiter", "Saturn"}, space.Questions[0].Answer.Set)
}

func TestReadDirRejectsDuplicatesAndInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", jsonQuiz)
	writeFile(t, dir, "b.json", jsonQuiz)
	_, err := ReadDir(dir)
	assert.ErrorIs(t, err, domain.ErrInvalidQuiz)

	bad := t.TempDir()
	writeFile(t, bad, "bad.yaml", "questions:\n  - text: q\n    type: essay\n    answer: x\n")
	_, err = ReadDir(bad)
	assert.ErrorIs(t, err, domain.ErrInvalidQuiz)
}
