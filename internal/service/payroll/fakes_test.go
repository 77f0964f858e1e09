package payroll

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/lifecycle"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/report"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/staff"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxrule"
)

type recovery struct {
	StaffID   string
	Amount    int64
	Reference string
}

// store is an in-memory stand-in for the payroll tables. memTx snapshots it so
// a failed transaction leaves nothing behind.
type store struct {
	mu sync.Mutex

	cycles      map[string]payroll.Cycle
	entries     map[string][]payroll.Entry
	profiles    []staff.Profile
	attendance  map[string]payroll.AttendanceSummary
	commissions map[string]payroll.CommissionEntry
	tips        []payroll.Tip
	advances    map[string]payroll.AdvanceBalance
	recoveries  []recovery
	seq         int

	replaceCalls        int
	commissionPaidCalls int
	advanceErr          map[string]error
	replaceErr          error
	// runs once before the next row lock is taken
	beforeRowLock func()
}

func newStore() *store {
	return &store{
		cycles:      make(map[string]payroll.Cycle),
		entries:     make(map[string][]payroll.Entry),
		attendance:  make(map[string]payroll.AttendanceSummary),
		commissions: make(map[string]payroll.CommissionEntry),
		advances:    make(map[string]payroll.AdvanceBalance),
		advanceErr:  make(map[string]error),
	}
}

func (s *store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func attendanceKey(staffID string, from time.Time) string {
	return staffID + "|" + from.Format("2006-01")
}

func (s *store) setAttendance(staffID string, year, month int, summary payroll.AttendanceSummary) {
	summary.StaffID = staffID
	s.attendance[attendanceKey(staffID, payroll.PeriodStart(year, month))] = summary
}

type storeState struct {
	cycles      map[string]payroll.Cycle
	entries     map[string][]payroll.Entry
	commissions map[string]payroll.CommissionEntry
	advances    map[string]payroll.AdvanceBalance
	recoveries  []recovery
}

func (s *store) save() storeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make(map[string][]payroll.Entry, len(s.entries))
	for k, v := range s.entries {
		entries[k] = slices.Clone(v)
	}
	return storeState{
		cycles:      maps.Clone(s.cycles),
		entries:     entries,
		commissions: maps.Clone(s.commissions),
		advances:    maps.Clone(s.advances),
		recoveries:  slices.Clone(s.recoveries),
	}
}

func (s *store) restore(st storeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = st.cycles
	s.entries = st.entries
	s.commissions = st.commissions
	s.advances = st.advances
	s.recoveries = st.recoveries
}

type memTx struct{ s *store }

func (m memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := m.s.save()
	if err := fn(ctx); err != nil {
		m.s.restore(saved)
		return err
	}
	return nil
}

// ---- cycles ----

type memCycleRepo struct{ s *store }

func (r memCycleRepo) Create(_ context.Context, c payroll.Cycle) (payroll.Cycle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.cycles {
		if existing.CompanyID == c.CompanyID && existing.PeriodYear == c.PeriodYear && existing.PeriodMonth == c.PeriodMonth {
			return payroll.Cycle{}, payroll.ErrCycleAlreadyExists
		}
	}
	c.ID = r.s.nextID("cycle")
	r.s.cycles[c.ID] = c
	return c, nil
}

func (r memCycleRepo) GetByID(_ context.Context, companyID, id string) (payroll.Cycle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cycles[id]
	if !ok || c.CompanyID != companyID {
		return payroll.Cycle{}, payroll.ErrCycleNotFound
	}
	return c, nil
}

func (r memCycleRepo) GetByIDForUpdate(ctx context.Context, companyID, id string) (payroll.Cycle, error) {
	if hook := r.s.beforeRowLock; hook != nil {
		r.s.beforeRowLock = nil
		hook()
	}
	return r.GetByID(ctx, companyID, id)
}

func (r memCycleRepo) List(_ context.Context, companyID string, filter payroll.CycleFilter) ([]payroll.Cycle, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payroll.Cycle
	for _, c := range r.s.cycles {
		if c.CompanyID != companyID {
			continue
		}
		if filter.Status != nil && string(c.Status) != *filter.Status {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (r memCycleRepo) Update(_ context.Context, c payroll.Cycle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.cycles[c.ID]; !ok {
		return payroll.ErrCycleNotFound
	}
	r.s.cycles[c.ID] = c
	return nil
}

// ---- entries ----

type memEntryRepo struct{ s *store }

func (r memEntryRepo) ReplaceForCycle(_ context.Context, _, cycleID string, entries []payroll.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.replaceCalls++
	if r.s.replaceErr != nil {
		return r.s.replaceErr
	}
	stored := make([]payroll.Entry, 0, len(entries))
	for _, e := range entries {
		e.ID = r.s.nextID("entry")
		stored = append(stored, e)
	}
	r.s.entries[cycleID] = stored
	return nil
}

func (r memEntryRepo) ListByCycle(_ context.Context, _, cycleID string) ([]payroll.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.entries[cycleID]), nil
}

func (r memEntryRepo) MarkSettled(_ context.Context, _, cycleID string, ids []string, reference string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	entries := r.s.entries[cycleID]
	for i := range entries {
		if slices.Contains(ids, entries[i].ID) && !entries[i].Settled {
			entries[i].Settled = true
			entries[i].SettledAt = &at
			entries[i].PaymentReference = &reference
			n++
		}
	}
	return n, nil
}

func (r memEntryRepo) GetLatestForStaff(_ context.Context, companyID, staffID string, beforeYear, beforeMonth int) (payroll.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var (
		best     payroll.Entry
		bestKey  int
		found    bool
		boundary = beforeYear*12 + beforeMonth
	)
	for cycleID, entries := range r.s.entries {
		c := r.s.cycles[cycleID]
		if c.CompanyID != companyID || !lifecycle.AtLeast(lifecycle.FlowPayrollCycle, c.Status, lifecycle.StatusPendingApproval) {
			continue
		}
		key := c.PeriodYear*12 + c.PeriodMonth
		if key >= boundary {
			continue
		}
		for _, e := range entries {
			if e.StaffID == staffID && (!found || key > bestKey) {
				best, bestKey, found = e, key, true
			}
		}
	}
	if !found {
		return payroll.Entry{}, payroll.ErrEntryNotFound
	}
	return best, nil
}

func (r memEntryRepo) ListClaimedCommissionIDs(_ context.Context, companyID, staffID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for cycleID, entries := range r.s.entries {
		c := r.s.cycles[cycleID]
		if c.CompanyID != companyID || lifecycle.AtLeast(lifecycle.FlowPayrollCycle, c.Status, lifecycle.StatusPaid) {
			continue
		}
		for _, e := range entries {
			if e.StaffID == staffID {
				ids = append(ids, e.Earnings.CommissionEntryIDs...)
			}
		}
	}
	return ids, nil
}

func (r memEntryRepo) SumPendingAdvanceRecovery(_ context.Context, companyID, staffID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for cycleID, entries := range r.s.entries {
		c := r.s.cycles[cycleID]
		if c.CompanyID != companyID || !lifecycle.AtLeast(lifecycle.FlowPayrollCycle, c.Status, lifecycle.StatusPendingApproval) ||
			lifecycle.AtLeast(lifecycle.FlowPayrollCycle, c.Status, lifecycle.StatusPaid) {
			continue
		}
		for _, e := range entries {
			if e.StaffID == staffID {
				total += e.Deductions.AdvanceRecovery
			}
		}
	}
	return total, nil
}

// ---- ledgers ----

type memStaffRepo struct{ s *store }

func (r memStaffRepo) GetByID(_ context.Context, companyID, id string) (staff.Profile, error) {
	for _, p := range r.s.profiles {
		if p.CompanyID == companyID && p.ID == id {
			return p, nil
		}
	}
	return staff.Profile{}, staff.ErrStaffNotFound
}

func (r memStaffRepo) ListPayable(_ context.Context, companyID string, periodEnd time.Time) ([]staff.Profile, error) {
	var out []staff.Profile
	for _, p := range r.s.profiles {
		if p.CompanyID == companyID && p.HireDate.Before(periodEnd) && p.EmploymentStatus != staff.EmploymentStatusInactive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memStaffRepo) UpdateEmploymentStatus(_ context.Context, companyID, id string, status staff.EmploymentStatus) error {
	for i, p := range r.s.profiles {
		if p.CompanyID == companyID && p.ID == id {
			r.s.profiles[i].EmploymentStatus = status
			return nil
		}
	}
	return staff.ErrStaffNotFound
}

func (r memStaffRepo) ListCompanyIDs(context.Context) ([]string, error) {
	var ids []string
	for _, p := range r.s.profiles {
		if !slices.Contains(ids, p.CompanyID) {
			ids = append(ids, p.CompanyID)
		}
	}
	return ids, nil
}

type memAttendanceRepo struct{ s *store }

func (r memAttendanceRepo) GetSummary(_ context.Context, _, staffID string, from, _ time.Time) (payroll.AttendanceSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	summary, ok := r.s.attendance[attendanceKey(staffID, from)]
	if !ok {
		return payroll.AttendanceSummary{}, payroll.ErrAttendanceNotFound
	}
	return summary, nil
}

func (r memAttendanceRepo) GetLeaveBalance(_ context.Context, _, staffID string, _ time.Time) (payroll.LeaveBalance, error) {
	return payroll.LeaveBalance{StaffID: staffID}, nil
}

type memCommissionRepo struct{ s *store }

func (r memCommissionRepo) ListEarned(_ context.Context, companyID, staffID string, from, to time.Time) ([]payroll.CommissionEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []payroll.CommissionEntry
	for _, c := range r.s.commissions {
		if c.CompanyID == companyID && c.StaffID == staffID && c.Status == payroll.CommissionStatusEarned &&
			!c.CompletedAt.Before(from) && c.CompletedAt.Before(to) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b payroll.CommissionEntry) int { return a.CompletedAt.Compare(b.CompletedAt) })
	return out, nil
}

func (r memCommissionRepo) MarkPaid(_ context.Context, _ string, ids []string, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.commissionPaidCalls++
	var n int64
	for _, id := range ids {
		c, ok := r.s.commissions[id]
		if !ok || c.Status == payroll.CommissionStatusPaid {
			continue
		}
		c.Status = payroll.CommissionStatusPaid
		c.PaidAt = &at
		r.s.commissions[id] = c
		n++
	}
	return n, nil
}

type memTipRepo struct{ s *store }

func (r memTipRepo) ListReceived(_ context.Context, companyID, staffID string, from, to time.Time) ([]payroll.Tip, error) {
	var out []payroll.Tip
	for _, tip := range r.s.tips {
		if tip.CompanyID == companyID && tip.StaffID == staffID && !tip.ReceivedAt.Before(from) && tip.ReceivedAt.Before(to) {
			out = append(out, tip)
		}
	}
	return out, nil
}

type memAdvanceRepo struct{ s *store }

func (r memAdvanceRepo) GetOutstanding(_ context.Context, _, staffID string) (payroll.AdvanceBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.advanceErr[staffID]; err != nil {
		return payroll.AdvanceBalance{}, err
	}
	b := r.s.advances[staffID]
	b.StaffID = staffID
	return b, nil
}

func (r memAdvanceRepo) RecordRecovery(_ context.Context, _, staffID string, amount int64, reference string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b := r.s.advances[staffID]
	b.Outstanding -= amount
	r.s.advances[staffID] = b
	r.s.recoveries = append(r.s.recoveries, recovery{StaffID: staffID, Amount: amount, Reference: reference})
	return nil
}

// ---- tax rules and exporter ----

type memTaxRules struct {
	sets []taxrule.RuleSet
}

func (m *memTaxRules) Create(context.Context, taxrule.CreateRuleSetRequest) (taxrule.RuleSetResponse, error) {
	return taxrule.RuleSetResponse{}, nil
}

func (m *memTaxRules) Get(context.Context, string, string) (taxrule.RuleSetResponse, error) {
	return taxrule.RuleSetResponse{}, nil
}

func (m *memTaxRules) List(context.Context, string) ([]taxrule.RuleSetResponse, error) {
	return nil, nil
}

func (m *memTaxRules) Load(_ context.Context, companyID, id string) (taxrule.RuleSet, error) {
	for _, rs := range m.sets {
		if rs.CompanyID == companyID && rs.ID == id {
			return rs, rs.Validate()
		}
	}
	return taxrule.RuleSet{}, taxrule.ErrRuleSetNotFound
}

func (m *memTaxRules) LoadEffective(_ context.Context, companyID string, asOf time.Time) (taxrule.RuleSet, error) {
	for _, rs := range m.sets {
		if rs.CompanyID == companyID && !rs.EffectiveFrom.After(asOf) {
			return rs, rs.Validate()
		}
	}
	return taxrule.RuleSet{}, taxrule.ErrRuleSetNotFound
}

type memExporter struct {
	cycles []report.CycleSnapshot
}

func (e *memExporter) ExportCycle(_ context.Context, snap report.CycleSnapshot) error {
	e.cycles = append(e.cycles, snap)
	return nil
}

func (e *memExporter) ExportSettlement(context.Context, report.ExitSnapshot) error { return nil }
