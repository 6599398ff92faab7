package dbmodel

import (
	"errors"
	"time"

	"github.com/go-pg/pg/v10"
	pkgerrors "github.com/pkg/errors"
)

// The event severity level.
type EventLevel int64

// Event levels.
const (
	EvInfo    EventLevel = 0 // informational
	EvWarning EventLevel = 1 // someone should look into this
	EvError   EventLevel = 2 // there is a serious problem
)

// Returns a human-readable representation of the event level.
func (t EventLevel) String() string {
	switch t {
	case EvInfo:
		return "info"
	case EvWarning:
		return "warning"
	case EvError:
		return "error"
	default:
		return "unknown"
	}
}

// Represents an event held in the event table.
type Event struct {
	ID        int64
	Created   time.Time
	Level     EventLevel `pg:",use_zero"`
	Text      string
	Details   map[string]interface{}
	MachineID *int64
}

// Add given event to the database.
func AddEvent(db pg.DBI, event *Event) error {
	_, err := db.Model(event).Insert()
	if err != nil {
		err = pkgerrors.Wrapf(err, "problem inserting event %+v", event)
	}
	return err
}

// Fetches a page of events from the database, newest first. The level
// indicates the lowest severity to include; machineID narrows the
// selection to one machine when positive.
func GetEvents(db pg.DBI, offset, limit int, level EventLevel, machineID int64) ([]Event, int, error) {
	var events []Event
	q := db.Model(&events).
		Where("level >= ?", level).
		OrderExpr("created DESC").
		Offset(offset).
		Limit(limit)
	if machineID > 0 {
		q = q.Where("machine_id = ?", machineID)
	}
	total, err := q.SelectAndCount()
	if err != nil && !errors.Is(err, pg.ErrNoRows) {
		return nil, 0, pkgerrors.Wrapf(err, "problem getting events")
	}
	return events, total, nil
}

// Delete events older than the given time. Returns the number of
// removed events.
func DeleteEventsBefore(db pg.DBI, before time.Time) (int, error) {
	result, err := db.Model((*Event)(nil)).Where("created < ?", before).Delete()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "problem deleting events older than %s", before)
	}
	return result.RowsAffected(), nil
}
