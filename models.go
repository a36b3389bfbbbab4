package wordgame

import (
	"fmt"
	"strings"
	"time"
)

const (
	// QuestionCount is the number of questions in every generated set
	QuestionCount = 10
	// OptionCount is the number of translation candidates per question
	OptionCount = 3
	// DefaultTimeLimit is the shared countdown for a whole game, in seconds
	DefaultTimeLimit = 30
)

// Language is one of the languages offered on the selection view
type Language string

const (
	English   Language = "english"
	Czech     Language = "czech"
	Spanish   Language = "spanish"
	Ukrainian Language = "ukrainian"
)

// Languages returns the supported languages in display order
func Languages() []Language {
	return []Language{English, Czech, Spanish, Ukrainian}
}

// ParseLanguage normalizes s and checks it against the supported set
func ParseLanguage(s string) (Language, error) {
	lang := Language(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range Languages() {
		if l == lang {
			return lang, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported language %q", ErrInvalidSetup, s)
}

// Difficulty controls how obscure the generated words are
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties returns the supported difficulty levels
func Difficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard}
}

// ParseDifficulty normalizes s and checks it against the supported levels
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Difficulties() {
		if known == d {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported difficulty %q", ErrInvalidSetup, s)
}

// GameSetupRequest carries the parameters chosen on the selection view
type GameSetupRequest struct {
	SourceLanguage Language   `json:"sourceLanguage"`
	TargetLanguage Language   `json:"targetLanguage"`
	Difficulty     Difficulty `json:"difficulty"`
	DateSeed       string     `json:"dateSeed"` // only nudges the model toward day-varying words
}

// WithDefaults fills empty fields the same way the preparing view does
func (r GameSetupRequest) WithDefaults(now time.Time) GameSetupRequest {
	if r.SourceLanguage == "" {
		r.SourceLanguage = English
	}
	if r.TargetLanguage == "" {
		r.TargetLanguage = Czech
	}
	if r.Difficulty == "" {
		r.Difficulty = Medium
	}
	if r.DateSeed == "" {
		r.DateSeed = now.Format("1/2/2006")
	}
	return r
}

// Validate normalizes the request in place and reports ErrInvalidSetup on bad input
func (r *GameSetupRequest) Validate() error {
	src, err := ParseLanguage(string(r.SourceLanguage))
	if err != nil {
		return err
	}
	dst, err := ParseLanguage(string(r.TargetLanguage))
	if err != nil {
		return err
	}
	if src == dst {
		return fmt.Errorf("%w: source and target language cannot be the same", ErrInvalidSetup)
	}
	diff, err := ParseDifficulty(string(r.Difficulty))
	if err != nil {
		return err
	}

	r.SourceLanguage, r.TargetLanguage, r.Difficulty = src, dst, diff
	return nil
}

// Question is a single word to translate with its candidate translations
type Question struct {
	Prompt  string   `json:"word"`
	Options []string `json:"options"`
	Answer  string   `json:"correct"`
}

// QuestionSet is the ordered list of questions for one game
type QuestionSet []Question

// Clone returns a copy that shares no option slices with s
func (s QuestionSet) Clone() QuestionSet {
	if s == nil {
		return nil
	}
	out := make(QuestionSet, len(s))
	for i, q := range s {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}
