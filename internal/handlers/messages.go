package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/avvvet/hrbuddy-intent/internal/logger"
	"github.com/avvvet/hrbuddy-intent/internal/models"
)

const executionFailedMessage = "अनुरोध पूरा नहीं हो सका। Your request could not be completed, please try again."

var readyMessages = map[models.Intent]string{
	models.IntentApplyLeave:          "छुट्टी का आवेदन तैयार है। Your leave request is ready to submit.",
	models.IntentApplyOnDuty:         "ऑन ड्यूटी का आवेदन तैयार है। Your on-duty request is ready to submit.",
	models.IntentApplyRegularization: "रेगुलराइज़ेशन का आवेदन तैयार है। Your regularization request is ready to submit.",
	models.IntentMarkAttendance:      "उपस्थिति दर्ज करने के लिए तैयार। Ready to mark your attendance.",
	models.IntentCheckLeaveBalance:   "आपका लीव बैलेंस देख रहे हैं। Fetching your leave balance.",
	models.IntentGetHolidays:         "छुट्टियों की सूची ला रहे हैं। Fetching the holiday list.",
	models.IntentGetSalarySlip:       "सैलरी स्लिप ला रहे हैं। Fetching your salary slip.",
}

func readyMessage(intent models.Intent) string {
	if msg, ok := readyMessages[intent]; ok {
		return msg
	}
	return fmt.Sprintf("All details received for %s.", intent)
}

// DryRunExecutor accepts every request without performing it. The local chat CLI uses it.
type DryRunExecutor struct {
	Logger logger.Logger
}

func (d DryRunExecutor) Execute(ctx context.Context, request *models.ActionRequest) (*models.ActionResult, error) {
	parts := make([]string, 0, len(request.Slots))
	for _, k := range request.Slots.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, request.Slots[k]))
	}
	if d.Logger != nil {
		d.Logger.Info("dry run execution", map[string]interface{}{
			"intent": request.Intent,
			"slots":  request.Slots,
		})
	}
	return &models.ActionResult{
		Success: true,
		Message: fmt.Sprintf("%s [dry run] %s", readyMessage(request.Intent), strings.Join(parts, ", ")),
	}, nil
}
