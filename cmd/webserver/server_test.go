package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"wordgame"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(ctx context.Context, req wordgame.GameSetupRequest, transcript *wordgame.LLMLogger) (string, error) {
	return f.text, f.err
}

func (f *fakeGenerator) Complete(ctx context.Context, req wordgame.GameSetupRequest, transcript *wordgame.LLMLogger) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		ID: "chatcmpl-test",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.text}},
		},
	}, nil
}

type fakeLister struct {
	records []wordgame.WordSetRecord
	sets    map[string]wordgame.QuestionSet
}

func (f *fakeLister) ListWordSets(ctx context.Context, limit int) ([]wordgame.WordSetRecord, error) {
	if limit > 0 && limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeLister) GetWordSet(ctx context.Context, id string) (*wordgame.WordSetRecord, wordgame.QuestionSet, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], f.sets[id], nil
		}
	}
	return nil, nil, wordgame.ErrWordSetNotFound
}

// wordList maps each prompt to its correct answer
var wordList = map[string]string{
	"Apple": "Jablko", "House": "Dům", "Dog": "Pes", "Water": "Voda", "Bread": "Chléb",
	"Tree": "Strom", "Book": "Kniha", "Sun": "Slunce", "Car": "Auto", "Milk": "Mléko",
}

func completionText(t *testing.T) string {
	t.Helper()
	type entry struct {
		Word    string   `json:"word"`
		Options []string `json:"options"`
		Correct string   `json:"correct"`
	}
	var entries []entry
	for word, answer := range wordList {
		entries = append(entries, entry{Word: word, Options: []string{answer, answer + "x", answer + "y"}, Correct: answer})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return "```json\n" + string(data) + "\n```"
}

type gameResponse struct {
	State            string   `json:"state"`
	Position         int      `json:"position"`
	Total            int      `json:"total"`
	Score            int      `json:"score"`
	SecondsRemaining int      `json:"secondsRemaining"`
	Prompt           string   `json:"prompt"`
	Options          []string `json:"options"`
	Reason           string   `json:"reason"`
	Headline         string   `json:"headline"`
	Note             string   `json:"note"`
}

func newTestServer(t *testing.T, gen *fakeGenerator, archive wordSetArchive) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	s := &Server{
		completer:  gen,
		preparer:   wordgame.NewPreparer(gen, logger),
		archive:    archive,
		players:    NewPlayerRegistry(time.Hour),
		store:      newCookieStore([]byte("0123456789abcdef0123456789abcdef"), time.Hour),
		logger:     logger,
		genTimeout: 5 * time.Second,
	}
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func doJSON(t *testing.T, client *http.Client, method, target string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusSeeOther {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, target, err)
		}
	}
	return resp
}

var englishCzechEasy = map[string]string{"sourceLanguage": "english", "targetLanguage": "czech", "difficulty": "easy"}

// setupGame runs setup and waits until the word set is ready
func setupGame(t *testing.T, client *http.Client, base string) {
	t.Helper()
	var status wordgame.SetupStatus
	resp := doJSON(t, client, http.MethodPost, base+"/game/setup", englishCzechEasy, &status)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("setup status = %d, want 202", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp = doJSON(t, client, http.MethodGet, base+"/game/setup", nil, &status)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("setup status poll = %d, want 200", resp.StatusCode)
		}
		if status.Ready {
			if status.Questions != wordgame.QuestionCount {
				t.Fatalf("questions = %d, want %d", status.Questions, wordgame.QuestionCount)
			}
			return
		}
		if status.Error != "" {
			t.Fatalf("setup failed: %s", status.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("word set never became ready")
}

func TestFullGameIsWon(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{text: completionText(t)}, nil)
	client := newClient(t)
	setupGame(t, client, srv.URL)

	var game gameResponse
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/game/start", nil, &game)
	if resp.StatusCode != http.StatusOK || game.State != "active" {
		t.Fatalf("start = %d %+v", resp.StatusCode, game)
	}
	if len(game.Options) != wordgame.OptionCount || game.SecondsRemaining != wordgame.DefaultTimeLimit {
		t.Fatalf("unexpected first question: %+v", game)
	}

	for i := 0; i < wordgame.QuestionCount; i++ {
		answer, ok := wordList[game.Prompt]
		if !ok {
			t.Fatalf("unknown prompt %q", game.Prompt)
		}
		resp = doJSON(t, client, http.MethodPost, srv.URL+"/game/answer", answerRequest{Choice: answer}, &game)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("answer %d status = %d", i, resp.StatusCode)
		}
	}

	if game.State != "won" || game.Score != wordgame.QuestionCount {
		t.Fatalf("final game = %+v, want won with full score", game)
	}
	if game.Headline != "Congratulations! You completed the game!" || game.Note != "Perfect Score! You're a language master!" {
		t.Fatalf("outcome = %q / %q", game.Headline, game.Note)
	}

	// Try again with the same words.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/game/reset", nil, &game)
	if resp.StatusCode != http.StatusOK || game.State != "ready" || game.Score != 0 {
		t.Fatalf("reset = %d %+v", resp.StatusCode, game)
	}
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/game/start", nil, &game)
	if resp.StatusCode != http.StatusOK || game.State != "active" {
		t.Fatalf("restart = %d %+v", resp.StatusCode, game)
	}

	resp = doJSON(t, client, http.MethodPost, srv.URL+"/game/leave", nil, nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("leave status = %d, want 303", resp.StatusCode)
	}
	resp = doJSON(t, client, http.MethodGet, srv.URL+"/game", nil, nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("game after leave = %d, want 303", resp.StatusCode)
	}
}

func TestWrongAnswerEndsGame(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{text: completionText(t)}, nil)
	client := newClient(t)
	setupGame(t, client, srv.URL)

	var game gameResponse
	doJSON(t, client, http.MethodPost, srv.URL+"/game/start", nil, &game)
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/game/answer", answerRequest{Choice: "definitely wrong"}, &game)
	if resp.StatusCode != http.StatusOK || game.State != "lost" || game.Reason != "wrong_answer" {
		t.Fatalf("answer = %d %+v, want lost", resp.StatusCode, game)
	}
	if game.Headline != "Game Over!" || game.Score != 0 || game.Position != 0 {
		t.Fatalf("lost game = %+v, want score 0 at position 0", game)
	}

	var conflict struct {
		Error string       `json:"error"`
		Game  gameResponse `json:"game"`
	}
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/game/answer", answerRequest{Choice: "Jablko"}, &conflict)
	if resp.StatusCode != http.StatusConflict || conflict.Game.State != "lost" {
		t.Fatalf("answer after loss = %d %+v", resp.StatusCode, conflict)
	}
}

func TestWrongAnswerAfterCorrectOnesKeepsScore(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{text: completionText(t)}, nil)
	client := newClient(t)
	setupGame(t, client, srv.URL)

	var game gameResponse
	doJSON(t, client, http.MethodPost, srv.URL+"/game/start", nil, &game)
	for i := 0; i < 4; i++ {
		doJSON(t, client, http.MethodPost, srv.URL+"/game/answer", answerRequest{Choice: wordList[game.Prompt]}, &game)
	}
	doJSON(t, client, http.MethodPost, srv.URL+"/game/answer", answerRequest{Choice: "wrong"}, &game)
	if game.State != "lost" || game.Score != 4 || game.Position != 4 {
		t.Fatalf("game = %+v, want lost with score 4 at position 4", game)
	}
}

func TestStartDuringActiveGameConflicts(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{text: completionText(t)}, nil)
	client := newClient(t)
	setupGame(t, client, srv.URL)

	var game gameResponse
	doJSON(t, client, http.MethodPost, srv.URL+"/game/start", nil, &game)
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/game/answer", answerRequest{Choice: wordList[game.Prompt]}, &game)
	if resp.StatusCode != http.StatusOK || game.Score != 1 {
		t.Fatalf("answer = %d %+v", resp.StatusCode, game)
	}

	var conflict struct {
		Error string       `json:"error"`
		Game  gameResponse `json:"game"`
	}
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/game/start", nil, &conflict)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second start = %d, want 409", resp.StatusCode)
	}
	if conflict.Game.State != "active" || conflict.Game.Position != 1 || conflict.Game.Score != 1 {
		t.Fatalf("running game was disturbed: %+v", conflict.Game)
	}

	// The running game carries on from where it was.
	resp = doJSON(t, client, http.MethodGet, srv.URL+"/game", nil, &game)
	if resp.StatusCode != http.StatusOK || game.Position != 1 || game.Score != 1 {
		t.Fatalf("game after second start = %d %+v", resp.StatusCode, game)
	}
}

func TestCookieSurvivesPlainHTTP(t *testing.T) {
	store := newCookieStore([]byte("0123456789abcdef0123456789abcdef"), 30*time.Minute)
	if store.Options.Secure {
		t.Fatalf("cookie is marked Secure")
	}
	if store.Options.SameSite != http.SameSiteLaxMode || !store.Options.HttpOnly || store.Options.MaxAge != 1800 {
		t.Fatalf("cookie options = %+v", store.Options)
	}

	srv := newTestServer(t, &fakeGenerator{text: completionText(t)}, nil)
	client := newClient(t)
	doJSON(t, client, http.MethodPost, srv.URL+"/game/setup", englishCzechEasy, &wordgame.SetupStatus{})

	base, _ := url.Parse(srv.URL)
	var found bool
	for _, c := range client.Jar.Cookies(base) {
		found = found || c.Name == sessionName
	}
	if !found {
		t.Fatalf("player cookie was not kept by the client over http")
	}
}

func TestMissingDataRedirectsToSelection(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{text: completionText(t)}, nil)
	client := newClient(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/game"},
		{http.MethodPost, "/game/start"},
		{http.MethodPost, "/game/reset"},
		{http.MethodGet, "/game/setup"},
	} {
		resp := doJSON(t, client, tc.method, srv.URL+tc.path, nil, nil)
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("%s %s status = %d, want 303", tc.method, tc.path, resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/" {
			t.Fatalf("%s %s Location = %q, want /", tc.method, tc.path, loc)
		}
	}
}

func TestFailedSetupReportsErrorAndRedirects(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{text: "not a word list"}, nil)
	client := newClient(t)

	var status wordgame.SetupStatus
	doJSON(t, client, http.MethodPost, srv.URL+"/game/setup", englishCzechEasy, &status)

	deadline := time.Now().Add(2 * time.Second)
	for status.Loading || status.Error == "" {
		if time.Now().After(deadline) {
			t.Fatalf("setup never failed: %+v", status)
		}
		time.Sleep(10 * time.Millisecond)
		doJSON(t, client, http.MethodGet, srv.URL+"/game/setup", nil, &status)
	}
	if status.Error != "An error occurred while fetching the words. Please refresh the page." {
		t.Fatalf("error = %q", status.Error)
	}

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/game/start", nil, nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("start after failed setup = %d, want 303", resp.StatusCode)
	}
}

func TestSetupRejectsInvalidRequest(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{text: completionText(t)}, nil)
	client := newClient(t)

	var errResp errorResponse
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/game/setup",
		map[string]string{"sourceLanguage": "czech", "targetLanguage": "czech"}, &errResp)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(errResp.Error, "invalid game setup") {
		t.Fatalf("setup = %d %+v, want 400", resp.StatusCode, errResp)
	}
}

func TestGenerateWords(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{text: "[]"}, nil)
	client := newClient(t)

	var envelope openai.ChatCompletionResponse
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/generate-words", englishCzechEasy, &envelope)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(envelope.Choices) != 1 || envelope.Choices[0].Message.Content != "[]" {
		t.Fatalf("envelope = %+v", envelope)
	}

	var errResp errorResponse
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/generate-words", "{not json", &errResp)
	if resp.StatusCode != http.StatusInternalServerError || errResp.Error != "Failed to fetch words from the API" {
		t.Fatalf("bad body = %d %+v, want 500", resp.StatusCode, errResp)
	}

	errResp = errorResponse{}
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/generate-words",
		map[string]string{"sourceLanguage": "czech", "targetLanguage": "czech"}, &errResp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid setup status = %d, want 400", resp.StatusCode)
	}

	failing := newTestServer(t, &fakeGenerator{
		err: &wordgame.UpstreamError{Op: "create chat completion", StatusCode: 503, Err: errors.New("unavailable")},
	}, nil)
	resp = doJSON(t, client, http.MethodPost, failing.URL+"/generate-words", englishCzechEasy, &errResp)
	if resp.StatusCode != http.StatusInternalServerError || errResp.Error != "Failed to fetch words from the API" {
		t.Fatalf("upstream failure = %d %+v", resp.StatusCode, errResp)
	}
}

func TestSelectionView(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{}, nil)
	var view selectionView
	resp := doJSON(t, newClient(t), http.MethodGet, srv.URL+"/", nil, &view)
	if resp.StatusCode != http.StatusOK || len(view.Languages) != 4 || len(view.Difficulties) != 3 {
		t.Fatalf("selection = %d %+v", resp.StatusCode, view)
	}
}

func TestWordSets(t *testing.T) {
	disabled := newTestServer(t, &fakeGenerator{}, nil)
	resp := doJSON(t, newClient(t), http.MethodGet, disabled.URL+"/wordsets", nil, &errorResponse{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("disabled archive status = %d, want 404", resp.StatusCode)
	}

	lister := &fakeLister{records: []wordgame.WordSetRecord{
		{ID: "a", SourceLanguage: wordgame.English, TargetLanguage: wordgame.Czech, Difficulty: wordgame.Easy},
		{ID: "b", SourceLanguage: wordgame.Spanish, TargetLanguage: wordgame.English, Difficulty: wordgame.Hard},
	}}
	srv := newTestServer(t, &fakeGenerator{}, lister)

	var body struct {
		WordSets []wordgame.WordSetRecord `json:"wordSets"`
	}
	resp = doJSON(t, newClient(t), http.MethodGet, srv.URL+"/wordsets?limit=1", nil, &body)
	if resp.StatusCode != http.StatusOK || len(body.WordSets) != 1 || body.WordSets[0].ID != "a" {
		t.Fatalf("wordsets = %d %+v", resp.StatusCode, body)
	}

	resp = doJSON(t, newClient(t), http.MethodGet, srv.URL+"/wordsets?limit=abc", nil, &errorResponse{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestWordSetDetail(t *testing.T) {
	lister := &fakeLister{
		records: []wordgame.WordSetRecord{{ID: "a", SourceLanguage: wordgame.English, TargetLanguage: wordgame.Czech, Difficulty: wordgame.Easy}},
		sets: map[string]wordgame.QuestionSet{
			"a": {{Prompt: "Apple", Options: []string{"Hruška", "Jablko", "Banán"}, Answer: "Jablko"}},
		},
	}
	srv := newTestServer(t, &fakeGenerator{}, lister)

	var body struct {
		ID        string               `json:"id"`
		Questions wordgame.QuestionSet `json:"questions"`
	}
	resp := doJSON(t, newClient(t), http.MethodGet, srv.URL+"/wordsets/a", nil, &body)
	if resp.StatusCode != http.StatusOK || body.ID != "a" || len(body.Questions) != 1 || body.Questions[0].Answer != "Jablko" {
		t.Fatalf("word set = %d %+v", resp.StatusCode, body)
	}

	resp = doJSON(t, newClient(t), http.MethodGet, srv.URL+"/wordsets/missing", nil, &errorResponse{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing word set status = %d, want 404", resp.StatusCode)
	}
}

func TestLiveStreamsUntilGameEnds(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{text: completionText(t)}, nil)
	client := newClient(t)
	setupGame(t, client, srv.URL)

	var game gameResponse
	doJSON(t, client, http.MethodPost, srv.URL+"/game/start", nil, &game)

	base, _ := url.Parse(srv.URL)
	header := http.Header{}
	for _, c := range client.Jar.Cookies(base) {
		header.Add("Cookie", fmt.Sprintf("%s=%s", c.Name, c.Value))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/game/live", &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var live gameResponse
	if err := wsjson.Read(ctx, conn, &live); err != nil {
		t.Fatalf("read first snapshot: %v", err)
	}
	if live.State != "active" || live.Prompt != game.Prompt {
		t.Fatalf("first snapshot = %+v", live)
	}

	doJSON(t, client, http.MethodPost, srv.URL+"/game/answer", answerRequest{Choice: "wrong"}, &game)

	for live.State != "lost" {
		if err := wsjson.Read(ctx, conn, &live); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if live.Reason != "wrong_answer" || live.Headline != "Game Over!" {
		t.Fatalf("final snapshot = %+v", live)
	}

	_, _, err = conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Fatalf("close status = %v, want normal closure", err)
	}
}
