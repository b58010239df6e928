package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/openboard/modkit/internal/db"
	"github.com/openboard/modkit/internal/policy/permissions"
)

func newPostFixture(durable bool) (*fakeStore, *fakeScheduler, *PostService, time.Time) {
	store := newFakeStore()
	store.grantRole("root", permissions.RoleAdmin)
	store.grantRole("mod1", permissions.RoleModerator)

	sched := &fakeScheduler{durable: durable}
	validator := permissions.NewValidator(store, store)
	svc := NewPostService(store, validator, sched, 7*24*time.Hour)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return base }
	return store, sched, svc, base
}

func TestReportPost(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("moderator reports thread", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")

		code, err := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeSuccess {
			t.Fatalf("got %v, want success", code)
		}
		thread := store.threads[7]
		if thread.ReportTicketID == nil {
			t.Fatalf("thread not flagged")
		}
		ticket := store.tickets[*thread.ReportTicketID]
		if ticket == nil || ticket.ReportingUserName != "mod1" {
			t.Fatalf("unexpected ticket %+v", ticket)
		}
		if ticket.ThreadID == nil || *ticket.ThreadID != 7 || ticket.CommentID != nil {
			t.Fatalf("ticket must reference exactly the thread, got %+v", ticket)
		}
	})

	t.Run("missing post", func(t *testing.T) {
		_, _, svc, _ := newPostFixture(true)
		code, err := svc.ReportPost(ctx, db.PostKindThread, 404, "mod1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeNotFound {
			t.Fatalf("got %v, want not found", code)
		}
	})

	t.Run("unprivileged reporter", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")
		code, err := svc.ReportPost(ctx, db.PostKindThread, 7, "carol")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeUnauthorized {
			t.Fatalf("got %v, want unauthorized", code)
		}
	})

	t.Run("author reports own post", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.grantRole("alice", permissions.RoleModerator)
		store.addThread(7, "alice", "title", "body")
		code, err := svc.ReportPost(ctx, db.PostKindThread, 7, "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeUnauthorized {
			t.Fatalf("got %v, want unauthorized", code)
		}
	})

	t.Run("admin-authored content", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.addThread(7, "root", "title", "body")
		code, err := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeUnauthorized {
			t.Fatalf("got %v, want unauthorized", code)
		}
	})

	t.Run("already reported", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")
		if code, _ := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1"); code != CodeSuccess {
			t.Fatalf("first report: got %v", code)
		}
		code, err := svc.ReportPost(ctx, db.PostKindThread, 7, "root")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeInvalidState {
			t.Fatalf("got %v, want invalid state", code)
		}
		if len(store.tickets) != 1 {
			t.Fatalf("duplicate ticket created")
		}
	})
}

func TestCancelReportTicket(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("round trip restores the post", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")
		before := *store.threads[7]

		if code, _ := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1"); code != CodeSuccess {
			t.Fatalf("report failed: %v", code)
		}
		ticketID := *store.threads[7].ReportTicketID

		code, err := svc.CancelReportTicket(ctx, ticketID, "root")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeSuccess {
			t.Fatalf("got %v, want success", code)
		}

		after := *store.threads[7]
		if after.ReportTicketID != nil || after.PendingDeletion {
			t.Fatalf("post not back to normal: %+v", after)
		}
		if after.Title != before.Title || after.Body != before.Body {
			t.Fatalf("content changed by report round trip")
		}
		if len(store.tickets) != 0 {
			t.Fatalf("ticket not removed")
		}
	})

	t.Run("non-admin", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")
		if code, _ := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1"); code != CodeSuccess {
			t.Fatalf("report failed")
		}
		code, err := svc.CancelReportTicket(ctx, *store.threads[7].ReportTicketID, "mod1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeUnauthorized {
			t.Fatalf("got %v, want unauthorized", code)
		}
	})

	t.Run("missing ticket", func(t *testing.T) {
		_, _, svc, _ := newPostFixture(true)
		code, err := svc.CancelReportTicket(ctx, 404, "root")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeNotFound {
			t.Fatalf("got %v, want not found", code)
		}
	})

	t.Run("actioned ticket cannot be cancelled", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")
		if code, _ := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1"); code != CodeSuccess {
			t.Fatalf("report failed")
		}
		ticketID := *store.threads[7].ReportTicketID
		if code, _ := svc.ForciblyDelete(ctx, db.PostKindThread, 7, "root"); code != CodeSuccess {
			t.Fatalf("forcible delete failed")
		}
		code, err := svc.CancelReportTicket(ctx, ticketID, "root")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeInvalidState {
			t.Fatalf("got %v, want invalid state", code)
		}
	})
}

func TestForciblyDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unreported post", func(t *testing.T) {
		store, sched, svc, _ := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")
		code, err := svc.ForciblyDelete(ctx, db.PostKindThread, 7, "root")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeUnauthorized {
			t.Fatalf("got %v, want unauthorized", code)
		}
		if len(sched.deletions) != 0 {
			t.Fatalf("unexpected scheduled deletion")
		}
	})

	t.Run("non-admin", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")
		if code, _ := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1"); code != CodeSuccess {
			t.Fatalf("report failed")
		}
		code, err := svc.ForciblyDelete(ctx, db.PostKindThread, 7, "mod1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeUnauthorized {
			t.Fatalf("got %v, want unauthorized", code)
		}
	})

	t.Run("reported thread is censored and scheduled", func(t *testing.T) {
		store, sched, svc, base := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")
		if code, _ := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1"); code != CodeSuccess {
			t.Fatalf("report failed")
		}
		ticketID := *store.threads[7].ReportTicketID

		code, err := svc.ForciblyDelete(ctx, db.PostKindThread, 7, "root")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeSuccess {
			t.Fatalf("got %v, want success", code)
		}

		thread := store.threads[7]
		if thread.Title != CensorPlaceholder || thread.Body != CensorPlaceholder {
			t.Fatalf("content not censored: %+v", thread)
		}
		if !thread.PendingDeletion {
			t.Fatalf("pending deletion not set")
		}
		if store.tickets[ticketID].ActionAt == nil {
			t.Fatalf("ticket action date not stamped")
		}
		if len(sched.deletions) != 1 {
			t.Fatalf("expected one scheduled deletion, got %d", len(sched.deletions))
		}
		want := base.Add(7 * 24 * time.Hour)
		if got := sched.deletions[0]; got.kind != db.PostKindThread || got.id != 7 || !got.fireAt.Equal(want) {
			t.Fatalf("unexpected scheduled deletion %+v, want fire at %v", got, want)
		}
	})

	t.Run("second forcible delete is invalid state", func(t *testing.T) {
		store, _, svc, _ := newPostFixture(true)
		store.addThread(7, "alice", "title", "body")
		if code, _ := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1"); code != CodeSuccess {
			t.Fatalf("report failed")
		}
		if code, _ := svc.ForciblyDelete(ctx, db.PostKindThread, 7, "root"); code != CodeSuccess {
			t.Fatalf("forcible delete failed")
		}
		code, err := svc.ForciblyDelete(ctx, db.PostKindThread, 7, "root")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeInvalidState {
			t.Fatalf("got %v, want invalid state", code)
		}
	})

	t.Run("degraded mode removes immediately", func(t *testing.T) {
		store, sched, svc, _ := newPostFixture(false)
		store.addThread(7, "alice", "title", "body")
		if code, _ := svc.ReportPost(ctx, db.PostKindThread, 7, "mod1"); code != CodeSuccess {
			t.Fatalf("report failed")
		}
		code, err := svc.ForciblyDelete(ctx, db.PostKindThread, 7, "root")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeSuccess {
			t.Fatalf("got %v, want success", code)
		}
		if _, ok := store.threads[7]; ok {
			t.Fatalf("thread not removed in degraded mode")
		}
		if len(sched.deletions) != 0 {
			t.Fatalf("degraded mode must not schedule")
		}
	})

	t.Run("reported comment", func(t *testing.T) {
		store, sched, svc, base := newPostFixture(true)
		store.comments[3] = &db.Comment{ID: 3, ThreadID: 7, AuthorUserName: "alice", Body: "body"}
		if code, _ := svc.ReportPost(ctx, db.PostKindComment, 3, "mod1"); code != CodeSuccess {
			t.Fatalf("report failed")
		}
		code, err := svc.ForciblyDelete(ctx, db.PostKindComment, 3, "root")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != CodeSuccess {
			t.Fatalf("got %v, want success", code)
		}
		if store.comments[3].Body != CensorPlaceholder {
			t.Fatalf("comment not censored")
		}
		want := base.Add(7 * 24 * time.Hour)
		if len(sched.deletions) != 1 || sched.deletions[0].kind != db.PostKindComment || !sched.deletions[0].fireAt.Equal(want) {
			t.Fatalf("unexpected scheduled deletion %+v", sched.deletions)
		}
	})
}
