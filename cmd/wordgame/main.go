package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"wordgame"
)

func main() {
	var (
		from       = flag.String("from", "english", "Language of the words to translate")
		to         = flag.String("to", "czech", "Language of the answer options")
		difficulty = flag.String("difficulty", "medium", "Difficulty level (easy, medium, hard)")
		dateSeed   = flag.String("date", "", "Date used to vary the words (default: today)")
		dbPath     = flag.String("db", "./wordgame.db", "Word set archive (empty disables)")
		outputFile = flag.String("output", "", "Write the question set as JSON instead of playing")
		apiKey     = flag.String("api-key", "", "Completion API key (or set DEEPSEEK_API_KEY env var)")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Parse()

	cfg, err := wordgame.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *apiKey != "" {
		cfg.Completion.APIKey = *apiKey
	}

	logger, err := wordgame.NewLogger("local", wordgame.VerboseLevel(*verbose))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	var db *wordgame.DB
	if *dbPath != "" {
		db, err = wordgame.OpenDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		if err := db.CreateTables(); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
	}

	state := wordgame.NewGameState()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Completion.Timeout)
	defer cancel()

	if cfg.Completion.APIKey == "" {
		log.Fatal("Completion API key is required. Use -api-key flag or set DEEPSEEK_API_KEY environment variable.")
	}

	var opts []wordgame.PreparerOption
	if db != nil {
		opts = append(opts, wordgame.WithArchive(db))
	}
	if cfg.Log.TranscriptDir != "" {
		opts = append(opts, wordgame.WithTranscripts(cfg.Log.TranscriptDir))
	}
	generator := wordgame.NewWordSetGenerator(cfg.Completion.Generator(), logger.Named("generator"))
	preparer := wordgame.NewPreparer(generator, logger.Named("preparer"), opts...)

	req := wordgame.GameSetupRequest{
		SourceLanguage: wordgame.Language(*from),
		TargetLanguage: wordgame.Language(*to),
		Difficulty:     wordgame.Difficulty(*difficulty),
		DateSeed:       *dateSeed,
	}
	fmt.Println("⏳ Preparing words, please wait...")
	if _, err := preparer.Prepare(ctx, state, req); err != nil {
		log.Fatalf("An error occurred while fetching the words: %v", err)
	}

	set, err := state.QuestionSet()
	if err != nil {
		log.Fatalf("Nothing to play: %v", err)
	}

	if *outputFile != "" {
		output, err := json.MarshalIndent(set, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal question set: %v", err)
		}
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			log.Fatalf("Failed to write output file: %v", err)
		}
		log.Printf("Question set saved to: %s", *outputFile)
		return
	}

	lines := readLines(os.Stdin)
	for {
		if !play(set, lines, os.Stdout) {
			return
		}
		fmt.Print("Try again with the same words? (y/n): ")
		answer, ok := <-lines
		if !ok || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			return
		}
	}
}

// play runs one game and reports whether input is still open
func play(set wordgame.QuestionSet, lines <-chan string, out io.Writer) bool {
	quiz := wordgame.NewQuizSession(set, wordgame.WithClock(wordgame.RealClock{}))
	defer quiz.Close()

	updates, unsubscribe := quiz.Subscribe()
	defer unsubscribe()

	fmt.Fprintf(out, "🎯 You have %d seconds for %d words. Wrong answer ends the game.\n\n", wordgame.DefaultTimeLimit, len(set))
	if _, err := quiz.Start(); err != nil {
		fmt.Fprintf(out, "Cannot start: %v\n", err)
		return true
	}

	r := &renderer{out: out, lastPosition: -1}
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return true
			}
			r.render(snap)
			if snap.State.Terminal() {
				return true
			}
		case line, ok := <-lines:
			if !ok {
				return false
			}
			snap := quiz.Snapshot()
			choice, err := parseChoice(line, snap.Options)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			quiz.SubmitAnswer(choice)
		}
	}
}

type renderer struct {
	out          io.Writer
	lastPosition int
}

func (r *renderer) render(snap wordgame.Snapshot) {
	switch {
	case snap.State == wordgame.StateActive && snap.Position != r.lastPosition:
		r.lastPosition = snap.Position
		fmt.Fprintf(r.out, "Word %d/%d (score %d, %ds left)\n", snap.Position+1, snap.Total, snap.Score, snap.SecondsRemaining)
		fmt.Fprintf(r.out, "Translate: %s\n", snap.Prompt)
		for i, option := range snap.Options {
			fmt.Fprintf(r.out, "  %d) %s\n", i+1, option)
		}
		fmt.Fprint(r.out, "Your answer: ")
	case snap.State == wordgame.StateActive && (snap.SecondsRemaining == 10 || snap.SecondsRemaining <= 5):
		fmt.Fprintf(r.out, "\n⏳ %ds left\n", snap.SecondsRemaining)
	case snap.State.Terminal():
		headline, note := wordgame.OutcomeMessage(snap)
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, strings.Repeat("─", 50))
		if snap.Reason == wordgame.ReasonTimeout {
			fmt.Fprintln(r.out, "⌛ Time is up!")
		}
		fmt.Fprintf(r.out, "%s\n", headline)
		fmt.Fprintf(r.out, "📊 Your Score: %d/%d\n", snap.Score, snap.Total)
		fmt.Fprintf(r.out, "%s\n", note)
		fmt.Fprintln(r.out, strings.Repeat("─", 50))
	}
}

// parseChoice accepts either the option number or the option text
func parseChoice(line string, options []string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("Please enter 1-%d or the translation", len(options))
	}
	if n, err := strconv.Atoi(line); err == nil {
		if n < 1 || n > len(options) {
			return "", fmt.Errorf("Please enter 1-%d or the translation", len(options))
		}
		return options[n-1], nil
	}
	for _, option := range options {
		if strings.EqualFold(option, line) {
			return option, nil
		}
	}
	// Unknown text is still an answer, and a wrong one.
	return line, nil
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func init() {
	log.SetFlags(0)
}
