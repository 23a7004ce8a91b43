package document

import (
	"strings"
	"testing"
	"time"
)

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestNew_Valid(t *testing.T) {
	doc, err := New("doc-1", "Guide", "md", 42, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "doc-1" || doc.Name() != "Guide" || doc.Format() != "md" || doc.Length() != 42 {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.State() != StateUploaded {
		t.Errorf("State() = %q, want uploaded", doc.State())
	}
	if !doc.CreatedAt().Equal(now) || !doc.UpdatedAt().Equal(now) {
		t.Errorf("unexpected timestamps: %v %v", doc.CreatedAt(), doc.UpdatedAt())
	}
}

func TestNew_DefaultName(t *testing.T) {
	doc, err := New("doc-1", "", "txt", 0, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name() != "doc-1" {
		t.Errorf("Name() = %q, want ID", doc.Name())
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr string
	}{
		{"valid", "doc_1-A", ""},
		{"empty", "", "required"},
		{"too long", strings.Repeat("a", 257), "too long"},
		{"max length", strings.Repeat("a", 256), ""},
		{"glob chars", "doc*", "alphanumeric"},
		{"colon", "a:b", "alphanumeric"},
		{"space", "a b", "alphanumeric"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateID(tc.id)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNew_NegativeLength(t *testing.T) {
	if _, err := New("doc-1", "", "txt", -1, now); err == nil {
		t.Fatal("expected error")
	}
}

func TestAdvance_HappyPath(t *testing.T) {
	doc, _ := New("doc-1", "", "txt", 10, now)
	steps := []State{StateChunking, StateEmbedding, StateIndexing, StateReady}
	prev := StateUploaded
	for i, s := range steps {
		later := now.Add(time.Duration(i+1) * time.Second)
		if err := doc.Advance(s, later); err != nil {
			t.Fatalf("advance to %s: %v", s, err)
		}
		if doc.State() != s {
			t.Fatalf("State() = %s, want %s", doc.State(), s)
		}
		if doc.LastStage() != prev {
			t.Errorf("LastStage() = %s, want %s", doc.LastStage(), prev)
		}
		if !doc.UpdatedAt().Equal(later) {
			t.Errorf("UpdatedAt not bumped")
		}
		prev = s
	}
	if !doc.IsReady() {
		t.Error("expected ready")
	}
}

func TestAdvance_SkipRejected(t *testing.T) {
	doc, _ := New("doc-1", "", "txt", 10, now)
	if err := doc.Advance(StateIndexing, now); err == nil {
		t.Fatal("expected illegal transition error")
	}
	if doc.State() != StateUploaded {
		t.Errorf("state changed on illegal transition: %s", doc.State())
	}
}

func TestAdvance_FailedRequiresFail(t *testing.T) {
	doc, _ := New("doc-1", "", "txt", 10, now)
	if err := doc.Advance(StateFailed, now); err == nil {
		t.Fatal("expected error")
	}
}

func TestFail_KeepsLastStage(t *testing.T) {
	doc, _ := New("doc-1", "", "txt", 10, now)
	_ = doc.Advance(StateChunking, now)
	_ = doc.Advance(StateEmbedding, now)

	if err := doc.Fail("provider down", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.State() != StateFailed {
		t.Errorf("State() = %s", doc.State())
	}
	if doc.LastStage() != StateChunking {
		t.Errorf("LastStage() = %s, want chunking", doc.LastStage())
	}
	if doc.Failure() != "provider down" {
		t.Errorf("Failure() = %q", doc.Failure())
	}
}

func TestFail_FromTerminalRejected(t *testing.T) {
	doc, _ := New("doc-1", "", "txt", 10, now)
	_ = doc.Fail("x", now)
	if err := doc.Fail("again", now); err == nil {
		t.Fatal("expected error failing a failed document")
	}
}

func TestState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUploaded, StateChunking, true},
		{StateChunking, StateEmbedding, true},
		{StateEmbedding, StateIndexing, true},
		{StateIndexing, StateReady, true},
		{StateUploaded, StateReady, false},
		{StateEmbedding, StateChunking, false},
		{StateUploaded, StateFailed, true},
		{StateIndexing, StateFailed, true},
		{StateReady, StateFailed, false},
		{StateFailed, StateChunking, false},
		{StateReady, StateChunking, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestState_Previous(t *testing.T) {
	if StateEmbedding.Previous() != StateChunking {
		t.Errorf("Previous(embedding) = %s", StateEmbedding.Previous())
	}
	if StateUploaded.Previous() != "" {
		t.Errorf("Previous(uploaded) = %s", StateUploaded.Previous())
	}
}

func TestParseState(t *testing.T) {
	if s, err := ParseState("ready"); err != nil || s != StateReady {
		t.Fatalf("ParseState(ready) = %s, %v", s, err)
	}
	if _, err := ParseState("done"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}
