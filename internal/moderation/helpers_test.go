package moderation

import (
	"context"
	"time"

	"github.com/openboard/modkit/internal/db"
)

// fakeStore is an in-memory stand-in for the storage capability, mirroring
// the sqlite client's conditional-update semantics.
type fakeStore struct {
	threads      map[int64]*db.Thread
	comments     map[int64]*db.Comment
	tickets      map[int64]*db.ReportTicket
	nextTicketID int64
	bans         map[string]*db.BanTicket
	roles        map[string]map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		threads:  map[int64]*db.Thread{},
		comments: map[int64]*db.Comment{},
		tickets:  map[int64]*db.ReportTicket{},
		bans:     map[string]*db.BanTicket{},
		roles:    map[string]map[string]bool{},
	}
}

func (f *fakeStore) grantRole(userName, role string) {
	if f.roles[userName] == nil {
		f.roles[userName] = map[string]bool{}
	}
	f.roles[userName][role] = true
}

func (f *fakeStore) addThread(id int64, author, title, body string) *db.Thread {
	thread := &db.Thread{ID: id, AuthorUserName: author, Title: title, Body: body}
	f.threads[id] = thread
	return thread
}

func (f *fakeStore) GetThread(ctx context.Context, id int64) (*db.Thread, error) {
	_ = ctx
	return f.threads[id], nil
}

func (f *fakeStore) DeleteThread(ctx context.Context, id int64) (bool, error) {
	_ = ctx
	if _, ok := f.threads[id]; !ok {
		return false, nil
	}
	delete(f.threads, id)
	return true, nil
}

func (f *fakeStore) CensorThread(ctx context.Context, id int64, placeholder string, actionAt time.Time) error {
	_ = ctx
	thread, ok := f.threads[id]
	if !ok {
		return db.ErrNotFound
	}
	if thread.ReportTicketID == nil || thread.PendingDeletion {
		return db.ErrConflict
	}
	thread.Title = placeholder
	thread.Body = placeholder
	thread.PendingDeletion = true
	thread.UpdatedAt = actionAt
	if ticket, ok := f.tickets[*thread.ReportTicketID]; ok {
		at := actionAt
		ticket.ActionAt = &at
	}
	return nil
}

func (f *fakeStore) GetComment(ctx context.Context, id int64) (*db.Comment, error) {
	_ = ctx
	return f.comments[id], nil
}

func (f *fakeStore) DeleteComment(ctx context.Context, id int64) (bool, error) {
	_ = ctx
	if _, ok := f.comments[id]; !ok {
		return false, nil
	}
	delete(f.comments, id)
	return true, nil
}

func (f *fakeStore) CensorComment(ctx context.Context, id int64, placeholder string, actionAt time.Time) error {
	_ = ctx
	comment, ok := f.comments[id]
	if !ok {
		return db.ErrNotFound
	}
	if comment.ReportTicketID == nil || comment.PendingDeletion {
		return db.ErrConflict
	}
	comment.Body = placeholder
	comment.PendingDeletion = true
	comment.UpdatedAt = actionAt
	if ticket, ok := f.tickets[*comment.ReportTicketID]; ok {
		at := actionAt
		ticket.ActionAt = &at
	}
	return nil
}

func (f *fakeStore) CreateReportTicket(ctx context.Context, ticket *db.ReportTicket) (*db.ReportTicket, error) {
	_ = ctx
	if err := ticket.Validate(); err != nil {
		return nil, err
	}
	switch ticket.PostKind() {
	case db.PostKindComment:
		comment, ok := f.comments[*ticket.CommentID]
		if !ok || comment.ReportTicketID != nil {
			return nil, db.ErrConflict
		}
		f.nextTicketID++
		ticket.ID = f.nextTicketID
		comment.ReportTicketID = &ticket.ID
	default:
		thread, ok := f.threads[*ticket.ThreadID]
		if !ok || thread.ReportTicketID != nil {
			return nil, db.ErrConflict
		}
		f.nextTicketID++
		ticket.ID = f.nextTicketID
		thread.ReportTicketID = &ticket.ID
	}
	f.tickets[ticket.ID] = ticket
	return ticket, nil
}

func (f *fakeStore) GetReportTicket(ctx context.Context, id int64) (*db.ReportTicket, error) {
	_ = ctx
	return f.tickets[id], nil
}

func (f *fakeStore) DeleteReportTicket(ctx context.Context, id int64) (bool, error) {
	_ = ctx
	if _, ok := f.tickets[id]; !ok {
		return false, nil
	}
	for _, thread := range f.threads {
		if thread.ReportTicketID != nil && *thread.ReportTicketID == id {
			thread.ReportTicketID = nil
		}
	}
	for _, comment := range f.comments {
		if comment.ReportTicketID != nil && *comment.ReportTicketID == id {
			comment.ReportTicketID = nil
		}
	}
	delete(f.tickets, id)
	return true, nil
}

func (f *fakeStore) InsertBanTicket(ctx context.Context, ticket *db.BanTicket) error {
	_ = ctx
	if _, ok := f.bans[ticket.UserName]; ok {
		return db.ErrConflict
	}
	f.bans[ticket.UserName] = ticket
	return nil
}

func (f *fakeStore) GetBanTicket(ctx context.Context, userName string) (*db.BanTicket, error) {
	_ = ctx
	return f.bans[userName], nil
}

func (f *fakeStore) BanTicketExists(ctx context.Context, userName string) (bool, error) {
	_ = ctx
	_, ok := f.bans[userName]
	return ok, nil
}

func (f *fakeStore) DeleteBanTicket(ctx context.Context, userName string) (bool, error) {
	_ = ctx
	if _, ok := f.bans[userName]; !ok {
		return false, nil
	}
	delete(f.bans, userName)
	return true, nil
}

func (f *fakeStore) HasRole(ctx context.Context, userName, role string) (bool, error) {
	_ = ctx
	return f.roles[userName][role], nil
}

func (f *fakeStore) AddToRole(ctx context.Context, userName, role string) error {
	_ = ctx
	f.grantRole(userName, role)
	return nil
}

func (f *fakeStore) RemoveFromRole(ctx context.Context, userName, role string) error {
	_ = ctx
	if f.roles[userName] != nil {
		delete(f.roles[userName], role)
	}
	return nil
}

type scheduledDeletion struct {
	kind   db.PostKind
	id     int64
	fireAt time.Time
}

type scheduledExpiry struct {
	userName string
	fireAt   time.Time
}

type fakeScheduler struct {
	durable   bool
	deletions []scheduledDeletion
	expiries  []scheduledExpiry
}

func (f *fakeScheduler) ScheduleDeletion(ctx context.Context, kind db.PostKind, id int64, fireAt time.Time) error {
	_ = ctx
	f.deletions = append(f.deletions, scheduledDeletion{kind: kind, id: id, fireAt: fireAt})
	return nil
}

func (f *fakeScheduler) ScheduleBanExpiry(ctx context.Context, userName string, fireAt time.Time) error {
	_ = ctx
	f.expiries = append(f.expiries, scheduledExpiry{userName: userName, fireAt: fireAt})
	return nil
}

func (f *fakeScheduler) Durable() bool {
	return f.durable
}
