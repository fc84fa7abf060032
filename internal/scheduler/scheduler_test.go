package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/config"
	"github.com/corvidae/pixback/internal/pixivapi"
	"github.com/corvidae/pixback/internal/queue"
	"github.com/corvidae/pixback/internal/statuspub"
)

func testLogger() *logs.Logger {
	return logs.New(logs.Config{Output: logs.OutputStdout, Level: "error"})
}

func TestNextWaitInterval_RateLimitOutranksEverything(t *testing.T) {
	snap := &config.Snapshot{
		SyncInterval:       30 * time.Minute,
		CooldownAfterLimit: 60 * time.Minute,
		CooldownAfterError: 15 * time.Minute,
	}
	outcome := &roundOutcome{rateLimited: true, hitMaxDownloads: true}

	wait, reason := nextWaitInterval(snap, outcome)
	if wait != snap.CooldownAfterError || reason != "rate_limit" {
		t.Errorf("expected cooldown_after_error/rate_limit, got %v/%q", wait, reason)
	}
}

func TestNextWaitInterval_MaxDownloadsOutranksNormal(t *testing.T) {
	snap := &config.Snapshot{
		SyncInterval:       30 * time.Minute,
		CooldownAfterLimit: 60 * time.Minute,
		CooldownAfterError: 15 * time.Minute,
	}
	outcome := &roundOutcome{hitMaxDownloads: true}

	wait, reason := nextWaitInterval(snap, outcome)
	if wait != snap.CooldownAfterLimit || reason != "max_downloads" {
		t.Errorf("expected cooldown_after_limit/max_downloads, got %v/%q", wait, reason)
	}
}

func TestNextWaitInterval_NormalRoundUsesSyncInterval(t *testing.T) {
	snap := &config.Snapshot{SyncInterval: 30 * time.Minute}
	wait, reason := nextWaitInterval(snap, &roundOutcome{})
	if wait != snap.SyncInterval || reason != "" {
		t.Errorf("expected sync interval with no cooldown reason, got %v/%q", wait, reason)
	}
}

func TestFallbackSnapshot_IsNotZeroDuration(t *testing.T) {
	snap := fallbackSnapshot()
	if snap.SyncInterval <= 0 {
		t.Error("fallback snapshot must not busy-loop on a zero interval")
	}
}

func TestCheckDiskSpace_SucceedsAgainstTempDir(t *testing.T) {
	if err := checkDiskSpace(t.TempDir()); err != nil {
		t.Fatalf("checkDiskSpace: %v", err)
	}
}

func TestCheckDiskSpace_MissingPathErrors(t *testing.T) {
	if err := checkDiskSpace(filepath.Join(t.TempDir(), "does", "not", "exist")); err == nil {
		t.Fatal("expected an error statfs'ing a missing path")
	}
}

func TestPIDLock_AcquireThenReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixback.pid")

	if err := acquirePIDLock(path); err != nil {
		t.Fatalf("acquirePIDLock: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strconv.Itoa(os.Getpid()) != string(data) {
		t.Errorf("expected pid file to contain %d, got %q", os.Getpid(), data)
	}

	releasePIDLock(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected pid file to be removed after release")
	}

	if err := acquirePIDLock(path); err != nil {
		t.Fatalf("expected reacquire after release to succeed, got %v", err)
	}
	releasePIDLock(path)
}

func TestPIDLock_RefusesWhileHeldByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixback.pid")

	// os.Getpid() is always alive for the duration of the test.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		t.Fatalf("seed pid file: %v", err)
	}

	if err := acquirePIDLock(path); err == nil {
		t.Fatal("expected acquirePIDLock to refuse a lock held by a live process")
	}
}

func TestPIDLock_ReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pixback.pid")

	// PID 1 is init/PID-namespace-reserved and, critically, not this test
	// process — but to keep the test independent of any particular PID
	// being dead, use an implausibly large PID instead.
	if err := os.WriteFile(path, []byte("999999999"), 0o600); err != nil {
		t.Fatalf("seed stale pid file: %v", err)
	}

	if err := acquirePIDLock(path); err != nil {
		t.Fatalf("expected stale lock to be reclaimed, got %v", err)
	}
	releasePIDLock(path)
}

func TestConsumeSentinel_RemovesFileAndReportsPresence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "force_run.flag")

	if consumeSentinel(path) {
		t.Error("expected no sentinel to be consumed before it exists")
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}
	if !consumeSentinel(path) {
		t.Error("expected the sentinel to be consumed once written")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected the sentinel file to be removed after consumption")
	}
}

func TestWaitInterval_StopsImmediatelyWhenStopRequested(t *testing.T) {
	s := New(t.TempDir(), testLogger())
	s.Stop()

	start := time.Now()
	result := s.waitInterval(context.Background(), time.Hour)
	if result != waitStopped {
		t.Errorf("expected waitStopped, got %v", result)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("expected waitInterval to return promptly on stop, not wait out the full interval")
	}
}

func TestStop_CancelsStopCtxImmediately(t *testing.T) {
	s := New(t.TempDir(), testLogger())

	if s.stopCtx.Err() != nil {
		t.Fatal("expected stopCtx to be live before Stop is called")
	}

	s.Stop()

	select {
	case <-s.stopCtx.Done():
	default:
		t.Error("expected Stop to cancel stopCtx synchronously")
	}

	// A pacer sleep (or anything else selecting on stopCtx) must unblock
	// immediately rather than waiting out its interval once stopped.
	pacer := queue.NewPacer(0, time.Hour, 0)
	start := time.Now()
	if err := pacer.Wait(s.stopCtx); err == nil {
		t.Error("expected pacer.Wait to return an error once stopCtx is canceled")
	}
	if time.Since(start) > time.Second {
		t.Error("expected pacer.Wait to return promptly once stopCtx is canceled")
	}
}

func TestWaitInterval_TriggeredBySentinelFile(t *testing.T) {
	s := New(t.TempDir(), testLogger())

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.MkdirAll(filepath.Dir(s.sentinelPath), 0o755)
		_ = os.WriteFile(s.sentinelPath, nil, 0o644)
	}()

	result := s.waitInterval(context.Background(), time.Hour)
	if result != waitTriggered {
		t.Errorf("expected waitTriggered, got %v", result)
	}
}

func TestWaitInterval_ElapsesNaturally(t *testing.T) {
	s := New(t.TempDir(), testLogger())
	result := s.waitInterval(context.Background(), 10*time.Millisecond)
	if result != waitElapsed {
		t.Errorf("expected waitElapsed, got %v", result)
	}
}

// illustJSON builds one bookmarks-page illust entry whose single-page
// image points at imgServer, so a full round can actually download it.
func illustJSON(id int64, imgServerURL string) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"title":      "work",
		"type":       "illust",
		"page_count": 1,
		"visible":    true,
		"user":       map[string]interface{}{"id": 77, "name": "author", "account": "author77"},
		"tags":       []interface{}{},
		"tools":      []interface{}{},
		"meta_single_page": map[string]interface{}{
			"original_image_url": imgServerURL + "/" + strconv.FormatInt(id, 10) + ".jpg",
		},
	}
}

func resetViperForSchedulerTest(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

// TestScheduler_Run_CompletesOneRoundThenIdles drives Scheduler.Run through
// exactly one full idle->scanning->draining->idle cycle against fake
// pixiv-shaped HTTP servers, then stops it once the round has published an
// idle/cooldown state, and checks the one bookmarked illust was archived.
func TestScheduler_Run_CompletesOneRoundThenIdles(t *testing.T) {
	outputDir := t.TempDir()

	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-image-bytes"))
	}))
	defer imgSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/user/following":
			json.NewEncoder(w).Encode(map[string]interface{}{"user_previews": []interface{}{}, "next_url": ""})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"illusts":  []map[string]interface{}{illustJSON(42, imgSrv.URL)},
				"next_url": "",
			})
		}
	}))
	defer apiSrv.Close()
	restoreAPI := pixivapi.SetAPIHostForTest(apiSrv.URL)
	defer restoreAPI()

	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pixivapi.TokenResponse{
			AccessToken:  "test-token",
			RefreshToken: "refresh-token",
			ExpiresIn:    3600,
		})
	}))
	defer authSrv.Close()
	restoreAuth := pixivapi.SetAuthHostForTest(authSrv.URL)
	defer restoreAuth()

	resetViperForSchedulerTest(t)
	viper.Set("enabled", true)
	viper.Set("user_id", "1")
	viper.Set("refresh_token", "seed-refresh")
	viper.Set("output_dir", outputDir)
	viper.Set("mode", "bookmarks")
	viper.Set("sync_interval_minutes", 1)

	s := New(outputDir, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := s.Status().Snapshot()
		if st.State == statuspub.StateIdle || st.State == statuspub.StateCooldown {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	s.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}

	st := s.Status().Snapshot()
	if st.Success != 1 {
		t.Errorf("expected 1 successful download, got %+v", st)
	}

	imgPath := filepath.Join(outputDir, "img", "42", "42.jpg")
	if _, err := os.Stat(imgPath); err != nil {
		t.Errorf("expected downloaded artifact at %s: %v", imgPath, err)
	}
}
