package goals

import (
	"strings"

	"github.com/hivecrm/journey/pkg/events"
	"github.com/hivecrm/journey/pkg/models"
)

// matches applies the type-specific matcher for one goal against one
// activity. Unknown goal types never match.
func matches(goal models.GoalConfig, activity *events.ContactActivity) bool {
	switch goal.Type {
	case models.GoalTagAdded:
		return matchTagAdded(goal.Config, activity)
	case models.GoalPurchaseMade:
		return matchPurchaseMade(goal.Config, activity)
	case models.GoalAppointmentBooked:
		return matchAppointmentBooked(goal.Config, activity)
	case models.GoalFormSubmitted:
		return matchFormSubmitted(goal.Config, activity)
	case models.GoalPipelineStageReached:
		return matchPipelineStageReached(goal.Config, activity)
	default:
		return false
	}
}

func matchTagAdded(config map[string]any, activity *events.ContactActivity) bool {
	if activity.Activity != events.ActivityTagAdded {
		return false
	}

	if tagID, ok := configString(config, "tag_id"); ok {
		return dataString(activity.Data, "tag_id") == tagID
	}

	if tagName, ok := configString(config, "tag_name"); ok {
		return strings.EqualFold(dataString(activity.Data, "tag_name"), tagName) ||
			strings.EqualFold(dataString(activity.Data, "tag"), tagName)
	}

	return false
}

func matchPurchaseMade(config map[string]any, activity *events.ContactActivity) bool {
	if activity.Activity != events.ActivityPurchaseMade {
		return false
	}

	if anyPurchase, _ := config["any_purchase"].(bool); anyPurchase {
		return true
	}

	if minAmount, ok := configNumber(config, "min_amount"); ok {
		amount, present := dataNumber(activity.Data, "amount")

		return present && amount >= minAmount
	}

	if productID, ok := configString(config, "product_id"); ok {
		return dataString(activity.Data, "product_id") == productID
	}

	return false
}

func matchAppointmentBooked(config map[string]any, activity *events.ContactActivity) bool {
	if activity.Activity != events.ActivityAppointmentBooked {
		return false
	}

	if anyAppointment, _ := config["any_appointment"].(bool); anyAppointment {
		return true
	}

	if calendarID, ok := configString(config, "calendar_id"); ok {
		return dataString(activity.Data, "calendar_id") == calendarID
	}

	if serviceID, ok := configString(config, "service_id"); ok {
		return dataString(activity.Data, "service_id") == serviceID
	}

	return false
}

func matchFormSubmitted(config map[string]any, activity *events.ContactActivity) bool {
	if activity.Activity != events.ActivityFormSubmitted {
		return false
	}

	formID, ok := configString(config, "form_id")

	return ok && dataString(activity.Data, "form_id") == formID
}

func matchPipelineStageReached(config map[string]any, activity *events.ContactActivity) bool {
	if activity.Activity != events.ActivityPipelineStageReached {
		return false
	}

	pipelineID, haveParent := configString(config, "pipeline_id")
	stageID, haveStage := configString(config, "stage_id")

	if !haveParent || !haveStage {
		return false
	}

	return dataString(activity.Data, "pipeline_id") == pipelineID &&
		dataString(activity.Data, "stage_id") == stageID
}

func configString(config map[string]any, key string) (string, bool) {
	value, ok := config[key].(string)
	if !ok || value == "" {
		return "", false
	}

	return value, true
}

func configNumber(config map[string]any, key string) (float64, bool) {
	switch typed := config[key].(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	default:
		return 0, false
	}
}

func dataString(data map[string]any, key string) string {
	value, _ := data[key].(string)

	return value
}

func dataNumber(data map[string]any, key string) (float64, bool) {
	switch typed := data[key].(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	default:
		return 0, false
	}
}
