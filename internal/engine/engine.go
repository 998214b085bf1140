package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskline/internal/domain"
	"taskline/internal/events"
	"taskline/internal/repo"
)

// Engine owns every plan, phase and task state change. Each mutation runs in
// its own transaction and records a lifecycle event alongside it.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Location *time.Location
	Now      func() time.Time
}

func New(db *sql.DB, loc *time.Location) Engine {
	if loc == nil {
		loc = time.UTC
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{},
		Location: loc,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// planLocation resolves the plan's timezone override, falling back to the
// engine default.
func (e Engine) planLocation(p domain.Plan) *time.Location {
	if tz := p.Timezone(); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	if e.Location != nil {
		return e.Location
	}
	return time.UTC
}

// Today returns the current calendar date in the plan's timezone.
func (e Engine) Today(p domain.Plan) string {
	return e.now().In(e.planLocation(p)).Format(domain.DateLayout)
}

func parseDate(field, value string) (time.Time, error) {
	d, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Message: fmt.Sprintf("%q is not a valid date (YYYY-MM-DD)", value)}
	}
	return d, nil
}

func addDays(d time.Time, n int) string {
	return d.AddDate(0, 0, n).Format(domain.DateLayout)
}

// IsNotFound reports whether err wraps repo.ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
