package store

import (
	"context"
	"testing"
	"time"

	"github.com/voxlog/voxlog/internal/model"
)

func seedRecordings(t *testing.T, s *Store, n int) []string {
	t.Helper()
	base := time.UnixMilli(1700000000000).UTC()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := string(rune('a'+i)) + "-rec"
		_, err := s.AddRecording(context.Background(), model.Recording{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = id
	}
	return ids
}

func TestRetention_KeepForeverIsNoOp(t *testing.T) {
	s := openTestStore(t)
	seedRecordings(t, s, 5)

	deleted, err := s.ApplyRetention(context.Background(), RetentionPolicy{Strategy: RetainForever})
	if err != nil {
		t.Fatalf("ApplyRetention failed: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("keep-forever deleted %d recordings", len(deleted))
	}

	list, err := s.ListRecordings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 5 {
		t.Errorf("got %d recordings, want 5", len(list))
	}
}

func TestRetention_LimitCountPurgesOldestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ids := seedRecordings(t, s, 5)

	deleted, err := s.ApplyRetention(ctx, RetentionPolicy{Strategy: RetainLimitCount, MaxCount: 3})
	if err != nil {
		t.Fatalf("ApplyRetention failed: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted %d recordings, want 2", len(deleted))
	}
	// Oldest two by creation time.
	if deleted[0] != ids[0] || deleted[1] != ids[1] {
		t.Errorf("deleted %v, want the two oldest %v", deleted, ids[:2])
	}

	list, err := s.ListRecordings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d survivors, want 3", len(list))
	}
	for _, rec := range list {
		if rec.ID == ids[0] || rec.ID == ids[1] {
			t.Errorf("old recording %s survived retention", rec.ID)
		}
	}
}

func TestRetention_SecondPassIsNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedRecordings(t, s, 5)

	policy := RetentionPolicy{Strategy: RetainLimitCount, MaxCount: 3}
	if _, err := s.ApplyRetention(ctx, policy); err != nil {
		t.Fatal(err)
	}
	deleted, err := s.ApplyRetention(ctx, policy)
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 0 {
		t.Errorf("second pass deleted %d recordings, want 0", len(deleted))
	}
}

func TestRetention_UnderLimitIsNoOp(t *testing.T) {
	s := openTestStore(t)
	seedRecordings(t, s, 2)

	deleted, err := s.ApplyRetention(context.Background(),
		RetentionPolicy{Strategy: RetainLimitCount, MaxCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 0 {
		t.Errorf("deleted %d recordings while under the limit", len(deleted))
	}
}

func TestRetention_DeletionsNotifySubscribers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedRecordings(t, s, 4)

	var deletes []string
	sub := s.Subscribe(func(c Change) {
		if c.Op == OpDelete && c.Table == "recordings" {
			deletes = append(deletes, c.ID)
		}
	})
	defer sub.Close()

	deleted, err := s.ApplyRetention(ctx, RetentionPolicy{Strategy: RetainLimitCount, MaxCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(deletes) != len(deleted) {
		t.Errorf("subscriber saw %d deletes, retention reported %d", len(deletes), len(deleted))
	}
}

func TestRetentionPolicy_Validate(t *testing.T) {
	cases := []struct {
		name    string
		policy  RetentionPolicy
		wantErr bool
	}{
		{"keep forever", RetentionPolicy{Strategy: RetainForever}, false},
		{"limit count", RetentionPolicy{Strategy: RetainLimitCount, MaxCount: 10}, false},
		{"zero limit", RetentionPolicy{Strategy: RetainLimitCount, MaxCount: 0}, true},
		{"negative limit", RetentionPolicy{Strategy: RetainLimitCount, MaxCount: -1}, true},
		{"unknown strategy", RetentionPolicy{Strategy: "keep-some"}, true},
		{"empty strategy", RetentionPolicy{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
