package dbmodel

import (
	"errors"
	"time"

	"github.com/go-pg/pg/v10"
	pkgerrors "github.com/pkg/errors"
)

// A diagnostic report collected from a machine: the JSON output of one
// of the analyzers, stored for review and comparison between runs.
type Report struct {
	ID        int64
	Created   time.Time
	MachineID int64
	Machine   *Machine `pg:"rel:has-one"`
	Kind      string
	Content   map[string]interface{}
}

// Add new report to the database.
func AddReport(db pg.DBI, report *Report) error {
	_, err := db.Model(report).Insert()
	if err != nil {
		err = pkgerrors.Wrapf(err, "problem inserting report for machine %d", report.MachineID)
	}
	return err
}

// Get the reports of a machine, newest first, optionally filtered by
// kind. A non-positive limit returns all of them.
func GetReportsByMachineID(db pg.DBI, machineID int64, kind string, limit int) ([]Report, error) {
	var reports []Report
	q := db.Model(&reports).
		Where("machine_id = ?", machineID).
		OrderExpr("created DESC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Select()
	if err != nil && !errors.Is(err, pg.ErrNoRows) {
		return nil, pkgerrors.Wrapf(err, "problem getting reports for machine %d", machineID)
	}
	return reports, nil
}

// Get a report by its ID. Returns nil without an error when the report
// does not exist.
func GetReportByID(db pg.DBI, id int64) (*Report, error) {
	report := Report{}
	err := db.Model(&report).Where("report.id = ?", id).Relation("Machine").Select()
	if errors.Is(err, pg.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, pkgerrors.Wrapf(err, "problem getting report %d", id)
	}
	return &report, nil
}

// Delete reports older than the given time. Returns the number of
// removed reports.
func DeleteReportsBefore(db pg.DBI, before time.Time) (int, error) {
	result, err := db.Model((*Report)(nil)).Where("created < ?", before).Delete()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "problem deleting reports older than %s", before)
	}
	return result.RowsAffected(), nil
}
