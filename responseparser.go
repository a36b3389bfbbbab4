package wordgame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var fencePattern = regexp.MustCompile("```[A-Za-z]*")

// RandomSource picks a uniform integer in [0, n)
type RandomSource interface {
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// Parser turns raw completion text into a validated, shuffled QuestionSet
type Parser struct {
	rng RandomSource
}

// NewParser returns a parser that shuffles with rng. A nil rng uses the
// goroutine-safe math/rand top-level source.
func NewParser(rng RandomSource) *Parser {
	if rng == nil {
		rng = globalRand{}
	}
	return &Parser{rng: rng}
}

// ParseQuestionSet parses text with the default random source
func ParseQuestionSet(text string) (QuestionSet, error) {
	return NewParser(nil).Parse(text)
}

// Parse validates the whole payload before building anything, so a failure
// never yields a partial set.
func (p *Parser) Parse(text string) (QuestionSet, error) {
	payload := StripFences(text)
	if payload == "" {
		return nil, malformed("empty completion text", nil)
	}

	result, err := wordSetSchema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, malformed("not valid JSON", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, malformed("schema violation", errors.New(strings.Join(msgs, "; ")))
	}

	var records []Question
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&records); err != nil {
		return nil, malformed("decode records", err)
	}

	for i, q := range records {
		if !contains(q.Options, q.Answer) {
			return nil, malformed(fmt.Sprintf("entry %d: correct answer %q is not among its options", i+1, q.Answer), nil)
		}
	}

	set := make(QuestionSet, len(records))
	for i, q := range records {
		options := append([]string(nil), q.Options...)
		p.shuffle(options)
		set[i] = Question{Prompt: q.Prompt, Options: options, Answer: q.Answer}
	}
	return set, nil
}

// shuffle is a Fisher-Yates permutation: walk down from the last index and
// swap each slot with a uniformly chosen slot at or below it.
func (p *Parser) shuffle(options []string) {
	for i := len(options) - 1; i > 0; i-- {
		j := p.rng.Intn(i + 1)
		options[i], options[j] = options[j], options[i]
	}
}

// StripFences removes markdown code fences and any prose around the outermost
// JSON array. A top-level object is returned whole so that a wrapped list is
// still rejected by the schema.
func StripFences(text string) string {
	s := fencePattern.ReplaceAllString(text, "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		return s
	}

	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

func contains(options []string, want string) bool {
	for _, o := range options {
		if o == want {
			return true
		}
	}
	return false
}
