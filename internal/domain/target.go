package domain

import (
	"context"
	"time"
)

// TargetStore persists the delivery target chat id.
type TargetStore interface {
	TargetChat(ctx context.Context) (chatID int64, ok bool, err error)
	SetTargetChat(ctx context.Context, chatID int64) error
}

// TargetResolver yields the effective delivery target, taking any
// environment-level override into account.
type TargetResolver interface {
	Resolve(ctx context.Context) (chatID int64, ok bool, err error)
}

// Report is one delivered post recorded in the archive.
type Report struct {
	ID        string
	Category  string
	Title     string
	Author    string
	Body      string
	Photos    int
	Clips     int
	ChatID    int64
	CreatedAt time.Time
}

// ReportArchive records successfully delivered posts.
type ReportArchive interface {
	SaveReport(ctx context.Context, r Report) error
	RecentReports(ctx context.Context, limit int) ([]Report, error)
}
