package payroll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
)

var (
	ErrCycleNotFound       = errors.New("payroll cycle not found")
	ErrCycleAlreadyExists  = errors.New("payroll cycle already exists for this period")
	ErrCycleNotFinalized   = errors.New("payroll cycle is not finalized yet")
	ErrEntryNotFound       = errors.New("payroll entry not found")
	ErrAttendanceNotFound  = errors.New("attendance summary not found")
	ErrUnsettledEntries    = errors.New("payroll entries are not settled")
	ErrInvalidPeriod       = errors.New("invalid payroll period")
	ErrNoEntriesSelected   = errors.New("no payroll entries selected")
	ErrNoTaxRuleConfigured = errors.New("no tax rule set configured for company")
)

// UnsettledEntriesError lists the entries blocking a cycle payment.
type UnsettledEntriesError struct {
	CycleID  string
	EntryIDs []string
}

func (e *UnsettledEntriesError) Error() string {
	return fmt.Sprintf("payroll cycle %s: %d entries not settled [%s]",
		e.CycleID, len(e.EntryIDs), strings.Join(e.EntryIDs, ", "))
}

func (e *UnsettledEntriesError) Is(target error) bool { return target == ErrUnsettledEntries }

// CycleFailedError is returned when no staff member could be processed. The
// cycle stays in draft.
type CycleFailedError struct {
	CycleID  string
	Failures []StaffFailure
}

func (e *CycleFailedError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.StaffID)
	}
	return fmt.Sprintf("payroll cycle %s: every staff entry failed [%s]", e.CycleID, strings.Join(ids, ", "))
}

func (e *CycleFailedError) Is(target error) bool { return target == apperror.ErrDataIncomplete }
