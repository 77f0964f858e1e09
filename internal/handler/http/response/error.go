package response

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/apperror"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/settlement"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/staff"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxrule"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

func staffDetails(err error) map[string]string {
	ids := apperror.StaffIDs(err)
	if len(ids) == 0 {
		return nil
	}
	return map[string]string{"staff_ids": strings.Join(ids, ",")}
}

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var unsettled *payroll.UnsettledEntriesError
	if errors.As(err, &unsettled) {
		Error(w, http.StatusConflict, "UNSETTLED_ENTRIES", err.Error(),
			map[string]string{"entry_ids": strings.Join(unsettled.EntryIDs, ",")})
		return
	}

	var failed *payroll.CycleFailedError
	if errors.As(err, &failed) {
		ids := make([]string, 0, len(failed.Failures))
		for _, f := range failed.Failures {
			ids = append(ids, f.StaffID)
		}
		Error(w, http.StatusUnprocessableEntity, "DATA_INCOMPLETE", err.Error(),
			map[string]string{"staff_ids": strings.Join(ids, ",")})
		return
	}

	switch {
	// Auth
	case errors.Is(err, jwt.ErrInvalidToken):
		Unauthorized(w, "Invalid token")
	case errors.Is(err, jwt.ErrCompanyRequired):
		Forbidden(w, err.Error())

	// Not found
	case errors.Is(err, payroll.ErrCycleNotFound):
		NotFound(w, "Payroll cycle not found")
	case errors.Is(err, payroll.ErrEntryNotFound):
		NotFound(w, "Payroll entry not found")
	case errors.Is(err, settlement.ErrExitNotFound):
		NotFound(w, "Exit record not found")
	case errors.Is(err, taxrule.ErrRuleSetNotFound):
		NotFound(w, "Tax rule set not found")
	case errors.Is(err, staff.ErrStaffNotFound):
		NotFound(w, "Staff not found")

	// Already exists
	case errors.Is(err, payroll.ErrCycleAlreadyExists):
		Conflict(w, "Payroll cycle already exists for this period")
	case errors.Is(err, settlement.ErrExitAlreadyExists):
		Conflict(w, "Staff already has an open exit record")
	case errors.Is(err, taxrule.ErrRuleSetNameExists):
		Conflict(w, "Tax rule set name already exists")

	// Engine taxonomy
	case errors.Is(err, apperror.ErrNegativeBalance):
		Error(w, http.StatusPreconditionRequired, "NEGATIVE_BALANCE", err.Error(), staffDetails(err))
	case errors.Is(err, apperror.ErrConcurrencyConflict):
		Error(w, http.StatusConflict, "CONCURRENCY_CONFLICT", err.Error(), nil)
	case errors.Is(err, apperror.ErrStateTransition),
		errors.Is(err, payroll.ErrCycleNotFinalized),
		errors.Is(err, settlement.ErrExitNotFinalized):
		Error(w, http.StatusConflict, "STATE_TRANSITION", err.Error(), nil)
	case errors.Is(err, apperror.ErrConfig), errors.Is(err, payroll.ErrNoTaxRuleConfigured):
		Error(w, http.StatusUnprocessableEntity, "CONFIG_ERROR", err.Error(), nil)
	case errors.Is(err, apperror.ErrDataIncomplete):
		Error(w, http.StatusUnprocessableEntity, "DATA_INCOMPLETE", err.Error(), staffDetails(err))

	case errors.Is(err, payroll.ErrInvalidPeriod), errors.Is(err, payroll.ErrNoEntriesSelected):
		BadRequest(w, err.Error(), nil)

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
