package domain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks struct constraints and the per-kind answer key invariants:
// selectall keys are a non-empty subset of the options and every match left
// key maps to exactly one right value drawn from the pair list.
func (q Quiz) Validate() error {
	if err := structValidator().Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %q", ErrInvalidQuiz, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	for i, question := range q.Questions {
		if err := question.validateKey(); err != nil {
			return fmt.Errorf("%w: question %d: %v", ErrInvalidQuiz, i, err)
		}
	}
	return nil
}

func (q Question) validateKey() error {
	if !q.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", q.Kind)
	}
	switch q.Kind {
	case KindMCQ, KindTrueFalse:
		if !q.Answer.IsSingle() {
			return errors.New("answer must be a single value")
		}
		if len(q.Options) > 0 && !contains(q.Options, q.Answer.Single) {
			return fmt.Errorf("answer %q is not one of the options", q.Answer.Single)
		}
	case KindOneWord:
		if !q.Answer.IsSingle() || q.Answer.Single == "" {
			return errors.New("answer must be a non-empty word")
		}
	case KindSelectAll:
		if !q.Answer.IsSet() || len(q.Answer.Set) == 0 {
			return errors.New("selectall answer must be a non-empty set")
		}
		for _, v := range q.Answer.Set {
			if !contains(q.Options, v) {
				return fmt.Errorf("selectall answer %q is not one of the options", v)
			}
		}
	case KindMatch:
		return q.validateMatch()
	}
	return nil
}

func (q Question) validateMatch() error {
	if len(q.MatchPairs) == 0 {
		if q.Answer.IsPairs() && len(q.Answer.Pairs) > 0 {
			return nil
		}
		return errors.New("match question needs pairs")
	}
	rights := make(map[string]struct{}, len(q.MatchPairs))
	lefts := make(map[string]struct{}, len(q.MatchPairs))
	for _, p := range q.MatchPairs {
		if _, dup := lefts[p.Left]; dup {
			return fmt.Errorf("left key %q appears twice", p.Left)
		}
		lefts[p.Left] = struct{}{}
		rights[p.Right] = struct{}{}
	}
	if q.Answer.IsPairs() {
		for left, right := range q.Answer.Pairs {
			if _, ok := lefts[left]; !ok {
				return fmt.Errorf("answer key %q has no pair", left)
			}
			if _, ok := rights[right]; !ok {
				return fmt.Errorf("answer value %q is not in the pair list", right)
			}
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
