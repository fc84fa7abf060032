package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/corvidae/pixback/internal/auth"
	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/pixivapi"
	"github.com/corvidae/pixback/internal/queue"
	"github.com/corvidae/pixback/internal/store"
)

func testLogger() *logs.Logger {
	return logs.New(logs.Config{Output: logs.OutputStdout, Level: "error"})
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "pixiv.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(t *testing.T, client *pixivapi.Client) *auth.Session {
	t.Helper()
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pixivapi.TokenResponse{
			AccessToken:  "test-token",
			RefreshToken: "refresh-token",
			ExpiresIn:    3600,
		})
	}))
	t.Cleanup(authSrv.Close)
	restore := pixivapi.SetAuthHostForTest(authSrv.URL)
	t.Cleanup(restore)

	sess, err := auth.New(client, testLogger(), t.TempDir(), "seed-refresh")
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	return sess
}

// illustJSON builds the wire shape for one illust, defaulting to visible.
func illustJSON(id int64, visible bool, createDate time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"title":       "work",
		"type":        "illust",
		"create_date": createDate.Format(time.RFC3339),
		"page_count":  1,
		"visible":     visible,
		"user":        map[string]interface{}{"id": 500, "name": "author", "account": "author500"},
		"tags":        []interface{}{},
		"tools":       []interface{}{},
	}
}

func TestBookmarksSource_Scan_EnqueuesNewWorksOnce(t *testing.T) {
	now := time.Now().UTC()
	illusts := []map[string]interface{}{
		illustJSON(3, true, now),
		illustJSON(2, true, now.Add(-time.Minute)),
		illustJSON(1, true, now.Add(-2*time.Minute)),
	}

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"illusts": illusts, "next_url": ""})
	}))
	defer apiSrv.Close()
	restore := pixivapi.SetAPIHostForTest(apiSrv.URL)
	defer restore()

	client := pixivapi.New(5 * time.Second)
	sess := testSession(t, client)
	st := openTestStore(t)
	q, err := queue.Open(filepath.Join(t.TempDir(), "q.json"))
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	cursor := empty()

	src := NewBookmarksSource(client, sess, st, q, cursor, "123", "public", testLogger())
	admission := NewAdmission(0, 0)

	n, err := src.Scan(context.Background(), admission, false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 enqueued, got %d", n)
	}
	if !cursor.BookmarksEverFullScanned {
		t.Error("expected first scan to mark full scan complete")
	}
	if cursor.MaxBookmarkOrder != 3 {
		t.Errorf("expected max_bookmark_order=3, got %d", cursor.MaxBookmarkOrder)
	}

	rec, err := st.GetIllust(3)
	if err != nil {
		t.Fatalf("GetIllust: %v", err)
	}
	if rec == nil || rec.BookmarkOrder == nil || *rec.BookmarkOrder != 2 {
		t.Errorf("expected newest illust to get bookmark_order=total-1 (2), got %+v", rec)
	}

	// Re-scanning with everything already known should enqueue nothing new
	// and leave bookmark_order untouched.
	admission2 := NewAdmission(0, q.Pending())
	n2, err := src.Scan(context.Background(), admission2, false)
	if err != nil {
		t.Fatalf("Scan (rescan): %v", err)
	}
	if n2 != 0 {
		t.Errorf("expected 0 newly enqueued on rescan, got %d", n2)
	}
}

func TestBookmarksSource_Scan_SkipsPlaceholders(t *testing.T) {
	now := time.Now().UTC()
	illusts := []map[string]interface{}{
		illustJSON(10, false, now),
		illustJSON(11, true, now.Add(-time.Minute)),
	}
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"illusts": illusts, "next_url": ""})
	}))
	defer apiSrv.Close()
	restore := pixivapi.SetAPIHostForTest(apiSrv.URL)
	defer restore()

	client := pixivapi.New(5 * time.Second)
	sess := testSession(t, client)
	st := openTestStore(t)
	q, _ := queue.Open(filepath.Join(t.TempDir(), "q.json"))
	cursor := empty()

	st.UpsertUser(&store.UserRecord{UserID: 10, Name: "ghost", LastSeenAt: now})
	st.UpsertIllust(&store.IllustRecord{IllustID: 10, AuthorID: 10, Tags: []string{}, ImageURLs: map[string]string{}, Tools: []string{}, FirstSeenAt: now, LastSeenAt: now})

	src := NewBookmarksSource(client, sess, st, q, cursor, "123", "public", testLogger())
	n, err := src.Scan(context.Background(), NewAdmission(0, 0), false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 enqueued (placeholder skipped), got %d", n)
	}

	rec, err := st.GetIllust(10)
	if err != nil {
		t.Fatalf("GetIllust: %v", err)
	}
	if !rec.IsAccessLimited {
		t.Error("expected placeholder illust to be marked access-limited")
	}
}

func TestBookmarksSource_Scan_AdmissionLimitStopsEnqueue(t *testing.T) {
	now := time.Now().UTC()
	illusts := []map[string]interface{}{
		illustJSON(3, true, now),
		illustJSON(2, true, now.Add(-time.Minute)),
		illustJSON(1, true, now.Add(-2*time.Minute)),
	}
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"illusts": illusts, "next_url": ""})
	}))
	defer apiSrv.Close()
	restore := pixivapi.SetAPIHostForTest(apiSrv.URL)
	defer restore()

	client := pixivapi.New(5 * time.Second)
	sess := testSession(t, client)
	st := openTestStore(t)
	q, _ := queue.Open(filepath.Join(t.TempDir(), "q.json"))
	cursor := empty()

	src := NewBookmarksSource(client, sess, st, q, cursor, "123", "public", testLogger())
	n, err := src.Scan(context.Background(), NewAdmission(2, 0), false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 2 {
		t.Errorf("expected admission to cap enqueue at 2, got %d", n)
	}
}

// TestBookmarksSource_Scan_BookmarkOrderIsZeroIndexed mirrors five
// bookmarks A..E (newest first) capped at three admissions: the newest
// three get 0-indexed ranks counting down from total-1, i.e. 4, 3, 2.
func TestBookmarksSource_Scan_BookmarkOrderIsZeroIndexed(t *testing.T) {
	now := time.Now().UTC()
	illusts := []map[string]interface{}{
		illustJSON(105, true, now),                     // A
		illustJSON(104, true, now.Add(-time.Minute)),   // B
		illustJSON(103, true, now.Add(-2*time.Minute)), // C
		illustJSON(102, true, now.Add(-3*time.Minute)), // D
		illustJSON(101, true, now.Add(-4*time.Minute)), // E
	}
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"illusts": illusts, "next_url": ""})
	}))
	defer apiSrv.Close()
	restore := pixivapi.SetAPIHostForTest(apiSrv.URL)
	defer restore()

	client := pixivapi.New(5 * time.Second)
	sess := testSession(t, client)
	st := openTestStore(t)
	q, _ := queue.Open(filepath.Join(t.TempDir(), "q.json"))
	cursor := empty()

	src := NewBookmarksSource(client, sess, st, q, cursor, "123", "public", testLogger())
	n, err := src.Scan(context.Background(), NewAdmission(3, 0), false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 enqueued, got %d", n)
	}

	wantOrder := map[int64]int64{105: 4, 104: 3, 103: 2}
	for id, want := range wantOrder {
		rec, err := st.GetIllust(id)
		if err != nil {
			t.Fatalf("GetIllust(%d): %v", id, err)
		}
		if rec == nil || rec.BookmarkOrder == nil || *rec.BookmarkOrder != want {
			t.Errorf("illust %d: expected bookmark_order=%d, got %+v", id, want, rec)
		}
	}
}

func TestFollowingSource_Scan_StopsAtKnownCursor(t *testing.T) {
	now := time.Now().UTC()
	followingSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/user/following" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"user_previews": []map[string]interface{}{
					{"user": map[string]interface{}{"id": 500, "name": "author", "account": "author500"}},
				},
				"next_url": "",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"illusts": []map[string]interface{}{
				illustJSON(30, true, now),
				illustJSON(29, true, now.Add(-time.Minute)),
			},
			"next_url": "",
		})
	}))
	defer followingSrv.Close()
	restore := pixivapi.SetAPIHostForTest(followingSrv.URL)
	defer restore()

	client := pixivapi.New(5 * time.Second)
	sess := testSession(t, client)
	st := openTestStore(t)
	q, _ := queue.Open(filepath.Join(t.TempDir(), "q.json"))
	cursor := empty()
	cursor.Authors["500"] = AuthorCursor{LatestSeenIllustID: 29, LatestCreateDate: now.Add(-time.Minute)}

	src := NewFollowingSource(client, sess, st, q, cursor, "123", "public", testLogger())
	n, err := src.Scan(context.Background(), NewAdmission(0, 0), false)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 {
		t.Errorf("expected only the one work newer than the cursor, got %d", n)
	}
	if cursor.Authors["500"].LatestSeenIllustID != 30 {
		t.Errorf("expected cursor to advance to 30, got %d", cursor.Authors["500"].LatestSeenIllustID)
	}
}

func TestCursor_LoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	c := empty()
	c.BookmarksEverFullScanned = true
	c.MaxBookmarkOrder = 42
	c.Authors["7"] = AuthorCursor{LatestSeenIllustID: 99}

	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.BookmarksEverFullScanned || loaded.MaxBookmarkOrder != 42 {
		t.Errorf("unexpected loaded cursor: %+v", loaded)
	}
	if loaded.Authors["7"].LatestSeenIllustID != 99 {
		t.Errorf("expected author cursor to round-trip, got %+v", loaded.Authors["7"])
	}
}

func TestCursor_Load_MissingFileReturnsEmpty(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BookmarksEverFullScanned {
		t.Error("expected a fresh empty cursor")
	}
}

func TestAdmission_ZeroLimitIsUnlimited(t *testing.T) {
	a := NewAdmission(0, 1000)
	if !a.CanEnqueue() {
		t.Error("a zero limit must never block enqueueing")
	}
}

func TestAdmission_StopsAtLimit(t *testing.T) {
	a := NewAdmission(3, 2)
	if !a.CanEnqueue() {
		t.Fatal("expected room for one more item")
	}
	a.Record()
	if a.CanEnqueue() {
		t.Error("expected limit to be reached")
	}
	if !a.HitLimit() {
		t.Error("expected HitLimit to report true")
	}
}
