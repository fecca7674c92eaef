package sweeper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockSweeper はSessionSweeperのモック実装。
type mockSweeper struct {
	calls atomic.Int64
	count int64
	err   error
}

func (m *mockSweeper) SweepExpired(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return m.count, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewJob_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	job := NewJob(&mockSweeper{}, newTestLogger(&buf))
	if job == nil {
		t.Fatal("NewJob は nil を返してはならない")
	}
}

// RunOnceが件数をログに記録することを検証
func TestJob_RunOnce_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{count: 7}
	job := NewJob(mock, newTestLogger(&buf))

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v\nraw: %s", err, buf.String())
	}
	if entry["deleted_count"] != float64(7) {
		t.Errorf("deleted_count = %v, want 7", entry["deleted_count"])
	}
}

// 掃引失敗がエラーとして返り、エラーログが出ることを検証
func TestJob_RunOnce_PropagatesSweepError(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{err: errors.New("store down")}
	job := NewJob(mock, newTestLogger(&buf))

	if err := job.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from RunOnce")
	}
	if !strings.Contains(buf.String(), "store down") {
		t.Errorf("error should be logged, got: %s", buf.String())
	}
}

// Startが起動直後に1回実行し、キャンセルで停止することを検証
func TestJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{count: 1}
	job := NewJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回目を待つ
	deadline := time.After(2 * time.Second)
	for mock.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial sweep did not run")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not stop after context cancellation")
	}
}

// 掃引エラーでもスケジューリングループが継続することを検証
func TestJob_Start_SurvivesSweepErrors(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSweeper{err: errors.New("store down")}
	job := NewJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 20*time.Millisecond)
		close(done)
	}()

	// エラーが出続けても複数ティック実行されること
	deadline := time.After(2 * time.Second)
	for mock.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("loop appears to have stopped after errors (calls=%d)", mock.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
