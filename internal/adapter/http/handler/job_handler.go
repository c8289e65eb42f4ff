package handler

import (
	"student-wallet-service/internal/core/ports"
	"student-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// JobHandler exposes the maintenance jobs to internal schedulers. The
// same code paths run on the in-process timers; the HTTP triggers exist
// for on-demand runs and for external cron systems.
type JobHandler struct {
	reconciliationSvc ports.ReconciliationService
	feeProjectionSvc  ports.FeeProjectionService
	log               zerolog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(reconciliationSvc ports.ReconciliationService, feeProjectionSvc ports.FeeProjectionService, log zerolog.Logger) *JobHandler {
	return &JobHandler{
		reconciliationSvc: reconciliationSvc,
		feeProjectionSvc:  feeProjectionSvc,
		log:               log,
	}
}

// Reconcile handles POST /api/v1/jobs/reconcile. With a student_id query
// parameter it reconciles one wallet, otherwise it sweeps all of them.
func (h *JobHandler) Reconcile(c *gin.Context) {
	if studentID := c.Query("student_id"); studentID != "" {
		result, err := h.reconciliationSvc.ReconcileWallet(c.Request.Context(), studentID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, result)
		return
	}

	report, err := h.reconciliationSvc.ReconcileAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// FeeSync handles POST /api/v1/jobs/fee-sync.
func (h *JobHandler) FeeSync(c *gin.Context) {
	report, err := h.feeProjectionSvc.SyncCompleted(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
