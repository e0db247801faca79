package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/calibration"
	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/placement"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gauge.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem(lvl level.Level, skill bank.Skill, n int) *bank.Item {
	return &bank.Item{
		Text:          fmt.Sprintf("%s %s question %d", lvl, skill, n),
		Type:          bank.TypeMultipleChoice,
		Level:         lvl,
		Skill:         skill,
		Options:       []string{"right", "wrong"},
		CorrectAnswer: "right",
	}
}

// seedBank stores perCell items for every level and skill.
func seedBank(t *testing.T, s *Store, perCell int) {
	t.Helper()
	ctx := context.Background()
	for _, l := range level.All() {
		for _, sk := range bank.Rotation() {
			for i := 0; i < perCell; i++ {
				if _, err := s.CreateItem(ctx, testItem(l, sk, i)); err != nil {
					t.Fatalf("seed item: %v", err)
				}
			}
		}
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
		{"busy_timeout", "5000"},
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gauge.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	id, err := s.CreateItem(context.Background(), testItem(level.B1, bank.SkillGrammar, 0))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()
	if _, err := s.GetItem(context.Background(), id); err != nil {
		t.Errorf("item lost across reopen: %v", err)
	}
}

func TestItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	it := testItem(level.A2, bank.SkillReading, 0)
	it.Explanation = "because"
	next := int64(42)
	it.NextIfCorrect = &next
	id, err := s.CreateItem(ctx, it)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Level != level.A2 || got.Skill != bank.SkillReading || got.Explanation != "because" {
		t.Errorf("got %+v", got)
	}
	if len(got.Options) != 2 || got.Options[0] != "right" {
		t.Errorf("options = %v", got.Options)
	}
	if got.NextIfCorrect == nil || *got.NextIfCorrect != 42 || got.NextIfIncorrect != nil {
		t.Errorf("branch pointers = %v / %v", got.NextIfCorrect, got.NextIfIncorrect)
	}

	if _, err := s.GetItem(ctx, id+100); !apperr.IsNotFound(err) {
		t.Errorf("unknown item: got %v, want not_found", err)
	}

	bad := testItem(level.A2, bank.SkillReading, 1)
	bad.CorrectAnswer = "Right"
	if _, err := s.CreateItem(ctx, bad); !apperr.IsValidation(err) {
		t.Errorf("invalid item: got %v, want validation", err)
	}

	if _, err := s.CreateItem(ctx, testItem(level.C1, bank.SkillReading, 2)); err != nil {
		t.Fatalf("create: %v", err)
	}
	items, err := s.QueryItems(ctx, ItemFilter{Skill: bank.SkillReading, Level: level.C1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(items) != 1 || items[0].Level != level.C1 {
		t.Errorf("filtered items = %v", items)
	}
	all, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}
}

func TestFindCandidate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateItem(ctx, testItem(level.B1, bank.SkillGrammar, 0))
	b, _ := s.CreateItem(ctx, testItem(level.B1, bank.SkillGrammar, 1))
	c, _ := s.CreateItem(ctx, testItem(level.B1, bank.SkillVocabulary, 0))

	err := s.WithinTx(ctx, func(tx placement.Tx) error {
		got, err := tx.FindCandidate(ctx, level.B1, bank.SkillGrammar, nil)
		if err != nil || got.ID != a {
			t.Errorf("first candidate = %v, %v; want %d", got, err, a)
		}
		got, err = tx.FindCandidate(ctx, level.B1, bank.SkillGrammar, []int64{a})
		if err != nil || got.ID != b {
			t.Errorf("with exclusion = %v, %v; want %d", got, err, b)
		}
		_, err = tx.FindCandidate(ctx, level.B1, bank.SkillGrammar, []int64{a, b})
		if !apperr.IsExhausted(err) {
			t.Errorf("exhausted cell: got %v", err)
		}
		got, err = tx.FindCandidate(ctx, level.B1, "", []int64{a, b})
		if err != nil || got.ID != c {
			t.Errorf("any skill = %v, %v; want %d", got, err, c)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestEngine_FullSessionPersists(t *testing.T) {
	s := openTestStore(t)
	seedBank(t, s, 3)
	ctx := context.Background()
	eng := placement.NewEngine(s, placement.DefaultConfig(), nil)

	self := level.C1
	start, err := eng.Start(ctx, placement.StartRequest{OwnerID: "u1", SelfReported: &self})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if start.Item.Level != level.B1 || start.Item.Skill != bank.SkillGrammar {
		t.Fatalf("first item at %s/%s, want B1/grammar", start.Item.Level, start.Item.Skill)
	}

	item := start.Item
	seen := map[int64]bool{}
	var last *placement.SubmitResult
	for i := 0; i < 10; i++ {
		if seen[item.ID] {
			t.Fatalf("item %d repeated", item.ID)
		}
		seen[item.ID] = true
		answer := "right"
		if i%3 == 2 {
			answer = "wrong"
		}
		last, err = eng.SubmitAnswer(ctx, placement.SubmitRequest{
			SessionID: start.Session.ID, ItemID: item.ID, Answer: answer, ElapsedSeconds: 12,
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i+1, err)
		}
		item = last.Next
	}
	if !last.Complete || last.Next != nil || last.Result == nil {
		t.Fatalf("session not complete after 10 answers: %+v", last)
	}

	sess, err := s.GetSession(ctx, start.Session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != placement.StatusComplete || sess.QuestionsAnswered != 10 || sess.TotalElapsed != 120 {
		t.Errorf("session = %+v", sess)
	}
	if sess.Result == nil || sess.Result.Level != last.Result.Level || sess.CompletedAt == nil {
		t.Errorf("persisted results = %+v", sess.Result)
	}

	resps, err := s.Responses(ctx, sess.ID)
	if err != nil {
		t.Fatalf("responses: %v", err)
	}
	if len(resps) != 10 {
		t.Fatalf("len(responses) = %d, want 10", len(resps))
	}
	for i, r := range resps {
		if r.Sequence != i+1 {
			t.Errorf("response %d has sequence %d", i, r.Sequence)
		}
	}
	if resps[0].AskLevel != level.B1 || resps[1].AskLevel != level.B2 {
		t.Errorf("ask levels = %s, %s; want B1, B2", resps[0].AskLevel, resps[1].AskLevel)
	}

	res, err := eng.Results(ctx, sess.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if res.Difference == nil || *res.Difference != level.Distance(level.C1, res.Estimation.Level) {
		t.Errorf("difference = %v", res.Difference)
	}

	hist, err := eng.History(ctx, "u1", 0)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history = %v, %v", hist, err)
	}

	// The owner may start again once the first session is complete.
	if _, err := eng.Start(ctx, placement.StartRequest{OwnerID: "u1", Kind: placement.KindRetest}); err != nil {
		t.Errorf("second start: %v", err)
	}
}

func TestEngine_ConcurrentStartsOneWins(t *testing.T) {
	s := openTestStore(t)
	seedBank(t, s, 1)
	eng := placement.NewEngine(s, placement.DefaultConfig(), nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Start(context.Background(), placement.StartRequest{OwnerID: "racer"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsConflict(err):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Errorf("ok = %d, conflicts = %d; want 1 and %d", ok, conflicts, n-1)
	}
}

func TestActiveIndexRejectsSecondActiveSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateItem(ctx, testItem(level.B1, bank.SkillGrammar, 0))

	mk := func(sid string) *placement.Session {
		return &placement.Session{
			ID: sid, OwnerID: "dup", Kind: placement.KindInitial, Status: placement.StatusActive,
			CurrentLevel: level.B1, CurrentItemID: id, StartedAt: time.Now(),
		}
	}
	if err := s.WithinTx(ctx, func(tx placement.Tx) error { return tx.CreateSession(ctx, mk("s1")) }); err != nil {
		t.Fatalf("first create: %v", err)
	}
	// Skips the ActiveForOwner check; only the index stands in the way.
	err := s.WithinTx(ctx, func(tx placement.Tx) error { return tx.CreateSession(ctx, mk("s2")) })
	if !apperr.IsConflict(err) {
		t.Errorf("second active session: got %v, want conflict", err)
	}
}

func TestSubmit_ExhaustionRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	first, _ := s.CreateItem(ctx, testItem(level.B1, bank.SkillGrammar, 0))
	cfg := placement.DefaultConfig()
	cfg.Fallback = placement.FallbackNone
	eng := placement.NewEngine(s, cfg, nil)

	start, err := eng.Start(ctx, placement.StartRequest{OwnerID: "u"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err = eng.SubmitAnswer(ctx, placement.SubmitRequest{SessionID: start.Session.ID, ItemID: first, Answer: "right"})
	if !apperr.IsExhausted(err) {
		t.Fatalf("got %v, want resource_exhausted", err)
	}

	sess, err := s.GetSession(ctx, start.Session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.QuestionsAnswered != 0 || sess.CurrentLevel != level.B1 || sess.CurrentItemID != first {
		t.Errorf("session changed after failed submit: %+v", sess)
	}
	resps, err := s.Responses(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(resps) != 0 {
		t.Errorf("responses = %d, want 0", len(resps))
	}
}

func TestAppendResponse_DuplicateSequenceConflicts(t *testing.T) {
	s := openTestStore(t)
	seedBank(t, s, 1)
	ctx := context.Background()
	eng := placement.NewEngine(s, placement.DefaultConfig(), nil)
	start, err := eng.Start(ctx, placement.StartRequest{OwnerID: "u"})
	if err != nil {
		t.Fatal(err)
	}

	resp := func() *placement.Response {
		return &placement.Response{
			SessionID: start.Session.ID, ItemID: start.Item.ID, Sequence: 1, Answer: "x",
			AskLevel: level.B1, Skill: bank.SkillGrammar, AnsweredAt: time.Now(),
		}
	}
	if err := s.WithinTx(ctx, func(tx placement.Tx) error { return tx.AppendResponse(ctx, resp()) }); err != nil {
		t.Fatalf("first append: %v", err)
	}
	err = s.WithinTx(ctx, func(tx placement.Tx) error { return tx.AppendResponse(ctx, resp()) })
	if !apperr.IsConflict(err) {
		t.Errorf("duplicate sequence: got %v, want conflict", err)
	}
}

// completeSession runs a full session for owner answering with answer(i).
func completeSession(t *testing.T, eng *placement.Engine, owner string, answer func(i int, it *bank.Item) string) string {
	t.Helper()
	ctx := context.Background()
	start, err := eng.Start(ctx, placement.StartRequest{OwnerID: owner})
	if err != nil {
		t.Fatalf("start %s: %v", owner, err)
	}
	it := start.Item
	for i := 0; i < 10; i++ {
		res, err := eng.SubmitAnswer(ctx, placement.SubmitRequest{
			SessionID: start.Session.ID, ItemID: it.ID, Answer: answer(i, it), ElapsedSeconds: 5,
		})
		if err != nil {
			t.Fatalf("submit %s #%d: %v", owner, i+1, err)
		}
		it = res.Next
	}
	return start.Session.ID
}

func TestObservations_CompleteSessionsBeforeCutoff(t *testing.T) {
	s := openTestStore(t)
	seedBank(t, s, 3)
	ctx := context.Background()
	eng := placement.NewEngine(s, placement.DefaultConfig(), nil)

	completeSession(t, eng, "done", func(int, *bank.Item) string { return "right" })

	// An active session's responses are not observations.
	active, err := eng.Start(ctx, placement.StartRequest{OwnerID: "active"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitAnswer(ctx, placement.SubmitRequest{SessionID: active.Session.ID, ItemID: active.Item.ID, Answer: "right"}); err != nil {
		t.Fatal(err)
	}

	// Both sessions answered the first B1 grammar item.
	obs, err := s.Observations(ctx, active.Item.ID, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("observations: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("len(obs) = %d, want 1", len(obs))
	}
	if !obs[0].Correct || obs[0].AskLevel != level.B1 || obs[0].ResponderLevel == "" {
		t.Errorf("observation = %+v", obs[0])
	}

	old, err := s.Observations(ctx, active.Item.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 0 {
		t.Errorf("observations before cutoff = %d, want 0", len(old))
	}
}

func TestReports(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i := 1; i <= 3; i++ {
		r := &calibration.Report{
			TotalItems:      i * 10,
			NeedsReview:     i,
			Flagged:         []calibration.ItemMetrics{{ItemID: int64(i), Attempts: 11, NeedsReview: true}},
			WellCalibrated:  map[level.Level]float64{level.B1: 90},
			Recommendations: []string{"Item bank is well-calibrated"},
			Cutoff:          now,
			GeneratedAt:     now.Add(time.Duration(i) * time.Second),
		}
		if _, err := s.SaveReport(ctx, r); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	list, err := s.ListReports(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].TotalItems != 30 || list[1].TotalItems != 20 {
		t.Fatalf("list = %+v", list)
	}

	got, err := s.GetReport(ctx, list[1].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WellCalibrated[level.B1] != 90 || len(got.Flagged) != 1 || got.Flagged[0].ItemID != 2 {
		t.Errorf("report = %+v", got)
	}
	if !got.Cutoff.Equal(now) {
		t.Errorf("cutoff = %v, want %v", got.Cutoff, now)
	}

	if _, err := s.GetReport(ctx, 999); !apperr.IsNotFound(err) {
		t.Errorf("unknown report: got %v", err)
	}
}

func TestMetrics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.CreateItem(ctx, testItem(level.B2, bank.SkillListening, i))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	m, err := s.GetMetrics(ctx, ids[0])
	if err != nil || m != nil {
		t.Fatalf("missing metrics = %v, %v; want nil, nil", m, err)
	}

	at := time.Now().UTC()
	err = s.SaveMetrics(ctx, []calibration.ItemMetrics{
		{ItemID: ids[0], Attempts: 20, Accuracy: 95, Confidence: 30, NeedsReview: true, ComputedAt: at},
		{ItemID: ids[1], Attempts: 12, Accuracy: 20, Confidence: 10, NeedsReview: true, ComputedAt: at},
		{ItemID: ids[2], Attempts: 12, Accuracy: 60, Confidence: 80, ComputedAt: at},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	// Upsert replaces the previous row.
	err = s.SaveMetrics(ctx, []calibration.ItemMetrics{
		{ItemID: ids[0], Attempts: 25, Accuracy: 96, Confidence: 35, NeedsReview: true, ComputedAt: at},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	m, err = s.GetMetrics(ctx, ids[0])
	if err != nil || m == nil || m.Attempts != 25 {
		t.Fatalf("metrics = %+v, %v", m, err)
	}

	flagged, err := s.ListFlagged(ctx, 10)
	if err != nil {
		t.Fatalf("flagged: %v", err)
	}
	if len(flagged) != 2 || flagged[0].ItemID != ids[1] || flagged[1].ItemID != ids[0] {
		t.Errorf("flagged = %+v, want lowest confidence first", flagged)
	}
	flagged, _ = s.ListFlagged(ctx, 21)
	if len(flagged) != 1 {
		t.Errorf("flagged with >= 21 attempts = %d, want 1", len(flagged))
	}

	if err := s.DeleteMetrics(ctx, ids[0]); err != nil {
		t.Fatal(err)
	}
	if m, _ := s.GetMetrics(ctx, ids[0]); m != nil {
		t.Error("metrics survived delete")
	}
}

func TestLedger(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id, _ := s.CreateItem(ctx, testItem(level.B1, bank.SkillGrammar, 0))
	if err := s.SaveMetrics(ctx, []calibration.ItemMetrics{{ItemID: id, Attempts: 1, ComputedAt: time.Now()}}); err != nil {
		t.Fatal(err)
	}

	svc := calibration.NewService(s, s, s, s, nil, calibration.DefaultConfig(), nil)
	l := calibration.NewLedger(s, svc, nil)

	first, err := l.Reclassify(ctx, id, level.A2, "reviewer", "too easy")
	if err != nil {
		t.Fatalf("reclassify: %v", err)
	}
	it, _ := s.GetItem(ctx, id)
	if it.Level != level.A2 {
		t.Errorf("item level = %s, want A2", it.Level)
	}
	if m, _ := s.GetMetrics(ctx, id); m != nil {
		t.Error("metrics not invalidated")
	}

	// Reports draw from the same sequence.
	if _, err := s.SaveReport(ctx, &calibration.Report{GeneratedAt: time.Now(), Cutoff: time.Now()}); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Reclassify(ctx, id, level.A2, "reviewer", ""); !apperr.IsConflict(err) {
		t.Errorf("same level: got %v, want conflict", err)
	}
	second, err := l.Reclassify(ctx, id, level.B2, "reviewer", "")
	if err != nil {
		t.Fatal(err)
	}
	if second.Sequence != first.Sequence+2 {
		t.Errorf("sequences %d then %d, want a gap of 2", first.Sequence, second.Sequence)
	}

	hist, err := l.History(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].NewLevel != level.B2 || hist[1].OldLevel != level.B1 {
		t.Errorf("history = %+v", hist)
	}
	if hist[1].Reason != "too easy" || hist[0].Reason != "" {
		t.Errorf("reasons = %q, %q", hist[1].Reason, hist[0].Reason)
	}

	if _, err := l.Reclassify(ctx, id+50, level.C1, "reviewer", ""); !apperr.IsNotFound(err) {
		t.Errorf("unknown item: got %v", err)
	}
}

func TestImport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	csv := strings.Join([]string{
		"question_text,question_type,difficulty_level,skill_focus,option_1,option_2,option_3,correct_answer,explanation",
		"She ___ to school.,multiple_choice,A1,grammar,go,goes,going,goes,third person",
		"Bad level,multiple_choice,Z9,grammar,a,b,,a,",
		"Pick the synonym of big,multiple_choice,A2,vocabulary,large,small,,large,",
	}, "\n")
	res, err := bank.NewImporter(s, nil).Import(ctx, "upload.csv", "", bank.FormatCSV, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Successful != 2 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}

	got, err := s.GetImport(ctx, res.ID)
	if err != nil {
		t.Fatalf("get import: %v", err)
	}
	if got.Status != bank.ImportCompleted || got.UploadedBy != "admin" || len(got.ItemIDs) != 2 {
		t.Errorf("import = %+v", got)
	}
	if len(got.Errors) != 1 || got.Errors[0].Row != 3 {
		t.Errorf("errors = %+v", got.Errors)
	}

	it, err := s.GetItem(ctx, got.ItemIDs[0])
	if err != nil {
		t.Fatal(err)
	}
	if it.ImportID == nil || *it.ImportID != res.ID {
		t.Errorf("item import id = %v, want %d", it.ImportID, res.ID)
	}

	list, err := s.ListImports(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Errorf("imports = %v, %v", list, err)
	}
}
