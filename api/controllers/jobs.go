package controllers

import (
	"net/http"
	"time"

	"github.com/billforge/billforge-backend/api/responses"
	sweepersvc "github.com/billforge/billforge-backend/internal/sweeper"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
)

type sweepResultView struct {
	Renewed    int    `json:"renewed"`
	Downgraded int    `json:"downgraded"`
	Enforced   int    `json:"enforced"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// RunSweep triggers a renewal/downgrade sweep on demand. Guarded by the
// scheduler token middleware; meant for external schedulers and operators.
func RunSweep(svc sweepersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sweeper unavailable"))
			return
		}

		result, err := svc.Sweep(r.Context(), time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := sweepResultView{
			Renewed:    result.Renewed,
			Downgraded: result.Downgraded,
			Enforced:   result.Enforced,
			Failed:     result.Failed,
		}
		if result.Err != nil {
			view.Error = result.Err.Error()
		}
		responses.WriteSuccess(w, view)
	}
}
