package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"prism/internal/domain"
)

func sampleMeal(userID int64, clientID, day string) *domain.Meal {
	return &domain.Meal{
		UserID:     userID,
		ClientID:   clientID,
		Name:       "Rice",
		Portion:    "1 bowl",
		Calories:   300,
		Sodium:     5,
		Purine:     20,
		MealType:   domain.MealLunch,
		Category:   domain.CategoryStaple,
		RecordDate: day,
	}
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestMealRepository(t *testing.T) {
	db := New()
	db.now = steppingClock(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	m, err := db.Insert(ctx, sampleMeal(1, "a", "2026-01-15"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if m.ID == 0 || m.SyncStatus != domain.SyncSynced {
		t.Errorf("unexpected inserted meal: %+v", m)
	}

	// Same key for the same user violates the unique constraint.
	if _, err := db.Insert(ctx, sampleMeal(1, "a", "2026-01-15")); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	// Same key for another user is fine.
	if _, err := db.Insert(ctx, sampleMeal(2, "a", "2026-01-15")); err != nil {
		t.Errorf("Insert other user: %v", err)
	}

	found, err := db.FindByClientID(ctx, 1, "a")
	if err != nil || found == nil || found.ID != m.ID {
		t.Fatalf("FindByClientID = %+v, %v", found, err)
	}
	if missing, _ := db.FindByClientID(ctx, 1, "zzz"); missing != nil {
		t.Error("expected nil for missing key")
	}

	// Update bumps updated_at.
	before := found.UpdatedAt
	found.Sodium = 900
	if err := db.UpdateMeal(ctx, found); err != nil {
		t.Fatalf("UpdateMeal: %v", err)
	}
	if !found.UpdatedAt.After(before) {
		t.Errorf("updated_at not bumped: %v -> %v", before, found.UpdatedAt)
	}

	// Cross-owner access is invisible.
	if other, _ := db.GetMeal(ctx, 2, m.ID); other != nil {
		t.Error("expected nil for other owner")
	}
	if err := db.DeleteMeal(ctx, 2, m.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	intake, err := db.DailyIntake(ctx, 1, "2026-01-15")
	if err != nil {
		t.Fatalf("DailyIntake: %v", err)
	}
	if intake.TotalSodium != 900 || intake.MealCount != 1 {
		t.Errorf("unexpected intake: %+v", intake)
	}

	if err := db.DeleteMeal(ctx, 1, m.ID); err != nil {
		t.Fatalf("DeleteMeal: %v", err)
	}
	if got, _ := db.GetMeal(ctx, 1, m.ID); got != nil {
		t.Error("expected meal to be deleted")
	}
}

func TestListUpdatedSince(t *testing.T) {
	db := New()
	db.now = steppingClock(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var inserted []*domain.Meal
	for _, key := range []string{"a", "b", "c"} {
		m, err := db.Insert(ctx, sampleMeal(1, key, "2026-01-15"))
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		inserted = append(inserted, m)
	}

	all, _ := db.ListUpdatedSince(ctx, 1, nil, 100)
	if len(all) != 3 || all[0].ClientID != "c" || all[2].ClientID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}

	since := inserted[0].UpdatedAt
	delta, _ := db.ListUpdatedSince(ctx, 1, &since, 100)
	if len(delta) != 2 {
		t.Fatalf("expected 2 records after %v, got %d", since, len(delta))
	}
	for _, m := range delta {
		if !m.UpdatedAt.After(since) {
			t.Errorf("record %q not after since", m.ClientID)
		}
	}

	capped, _ := db.ListUpdatedSince(ctx, 1, nil, 2)
	if len(capped) != 2 {
		t.Errorf("expected limit to apply, got %d", len(capped))
	}
}

func TestListMeals(t *testing.T) {
	db := New()
	db.now = steppingClock(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	days := []string{"2026-01-13", "2026-01-14", "2026-01-15", "2026-01-15"}
	for i, d := range days {
		if _, err := db.Insert(ctx, sampleMeal(1, string(rune('a'+i)), d)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	items, total, _ := db.ListMeals(ctx, 1, domain.MealFilter{Page: 1, PageSize: 2})
	if total != 4 || len(items) != 2 {
		t.Fatalf("total=%d len=%d", total, len(items))
	}
	if items[0].ClientID != "d" || items[1].ClientID != "c" {
		t.Errorf("unexpected order: %q %q", items[0].ClientID, items[1].ClientID)
	}

	items, total, _ = db.ListMeals(ctx, 1, domain.MealFilter{Date: "2026-01-14", Page: 1, PageSize: 20})
	if total != 1 || items[0].ClientID != "b" {
		t.Errorf("date filter: total=%d items=%+v", total, items)
	}

	_, total, _ = db.ListMeals(ctx, 1, domain.MealFilter{StartDate: "2026-01-14", EndDate: "2026-01-15", Page: 1, PageSize: 20})
	if total != 3 {
		t.Errorf("range filter: total=%d", total)
	}

	items, total, _ = db.ListMeals(ctx, 1, domain.MealFilter{Page: 5, PageSize: 2})
	if total != 4 || len(items) != 0 {
		t.Errorf("out of range page: total=%d len=%d", total, len(items))
	}
}

func TestWithinMealTxRollback(t *testing.T) {
	db := New()
	ctx := context.Background()
	boom := errors.New("boom")

	existing, _ := db.Insert(ctx, sampleMeal(1, "keep", "2026-01-15"))

	err := db.WithinMealTx(ctx, func(tx domain.MealRepository) error {
		if _, err := tx.Insert(ctx, sampleMeal(1, "x", "2026-01-15")); err != nil {
			return err
		}
		m := *existing
		m.Name = "Changed"
		if err := tx.UpdateMeal(ctx, &m); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if m, _ := db.FindByClientID(ctx, 1, "x"); m != nil {
		t.Error("insert was not rolled back")
	}
	if m, _ := db.FindByClientID(ctx, 1, "keep"); m == nil || m.Name != "Rice" {
		t.Errorf("update was not rolled back: %+v", m)
	}

	err = db.WithinMealTx(ctx, func(tx domain.MealRepository) error {
		_, err := tx.Insert(ctx, sampleMeal(1, "y", "2026-01-15"))
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if m, _ := db.FindByClientID(ctx, 1, "y"); m == nil {
		t.Error("committed insert missing")
	}
}

func TestUserAndSessionRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	u, err := db.Create(ctx, &domain.User{Phone: "13800138000", IsActive: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := db.Create(ctx, &domain.User{Phone: "13800138000"}); !errors.Is(err, domain.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	if _, err := db.Create(ctx, &domain.User{SSOSubject: "sub-1", IsActive: false}); err != nil {
		t.Fatalf("Create sso: %v", err)
	}

	got, _ := db.GetByPhone(ctx, "13800138000")
	if got == nil || got.ID != u.ID {
		t.Fatalf("GetByPhone = %+v", got)
	}
	// Empty phone never matches SSO-only accounts.
	if got, _ := db.GetByPhone(ctx, ""); got != nil {
		t.Error("expected nil for empty phone")
	}

	got.Nickname = "Ann"
	if err := db.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if again, _ := db.GetByID(ctx, u.ID); again.Nickname != "Ann" {
		t.Errorf("nickname = %q", again.Nickname)
	}

	active, _ := db.ListActive(ctx)
	if len(active) != 1 {
		t.Errorf("expected 1 active user, got %d", len(active))
	}

	sessions := db.NewSessionRepo()
	now := time.Now()
	_ = sessions.Create(ctx, &domain.Session{Token: "live", UserID: u.ID, ExpiresAt: now.Add(time.Hour)})
	_ = sessions.Create(ctx, &domain.Session{Token: "dead", UserID: u.ID, ExpiresAt: now.Add(-time.Hour)})

	n, err := sessions.DeleteExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpired = %d, %v", n, err)
	}
	if s, _ := sessions.GetByToken(ctx, "live"); s == nil {
		t.Error("live session removed")
	}
	if s, _ := sessions.GetByToken(ctx, "dead"); s != nil {
		t.Error("expired session kept")
	}
}

func TestMessageRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	for _, typ := range []domain.MessageType{domain.MessageWarning, domain.MessageBrief, domain.MessageWarning} {
		if _, err := db.CreateMessage(ctx, &domain.AppMessage{UserID: 1, Type: typ, Title: string(typ)}); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	warnings, _ := db.ListMessages(ctx, 1, domain.MessageFilter{Type: domain.MessageWarning})
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %d", len(warnings))
	}

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m, err := db.MarkRead(ctx, 1, 1, first)
	if err != nil || !m.IsRead {
		t.Fatalf("MarkRead = %+v, %v", m, err)
	}
	m, _ = db.MarkRead(ctx, 1, 1, first.Add(time.Hour))
	if !m.ReadAt.Equal(first) {
		t.Errorf("read_at changed on second read: %v", m.ReadAt)
	}
	if _, err := db.MarkRead(ctx, 2, 1, first); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other owner, got %v", err)
	}

	if n, _ := db.CountUnread(ctx, 1); n != 2 {
		t.Errorf("unread = %d", n)
	}
	if n, _ := db.MarkAllRead(ctx, 1, first); n != 2 {
		t.Errorf("MarkAllRead = %d", n)
	}
	unread, _ := db.ListMessages(ctx, 1, domain.MessageFilter{UnreadOnly: true})
	if len(unread) != 0 {
		t.Errorf("expected no unread messages, got %d", len(unread))
	}
}

func TestChatRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	s, err := db.CreateSession(ctx, &domain.ChatSession{UserID: 1, Title: "t"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := db.AddChatMessage(ctx, &domain.ChatMessage{SessionID: s.ID, Role: domain.RoleUser, Content: string(rune('a' + i))}); err != nil {
			t.Fatalf("AddChatMessage: %v", err)
		}
	}

	recent, _ := db.RecentChatMessages(ctx, s.ID, 3)
	if len(recent) != 3 || recent[0].Content != "c" || recent[2].Content != "e" {
		t.Errorf("unexpected recent messages: %+v", recent)
	}

	got, _ := db.GetSession(ctx, 1, s.ID)
	if got == nil || got.MessageCount != 5 {
		t.Fatalf("GetSession = %+v", got)
	}
	if other, _ := db.GetSession(ctx, 2, s.ID); other != nil {
		t.Error("expected nil for other owner")
	}

	if err := db.DeleteSession(ctx, 1, s.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if msgs, _ := db.RecentChatMessages(ctx, s.ID, 0); len(msgs) != 0 {
		t.Errorf("messages not cascaded: %d", len(msgs))
	}
}
