package notify

import (
	"fmt"
	"strings"
)

const (
	TemplateBookingConfirmed = "booking-confirmed"
	TemplateOpsNewOrder      = "ops-new-order"
)

type Template struct {
	Subject string
	Body    string
	SMS     string
}

var templates = map[string]Template{
	TemplateBookingConfirmed: {
		Subject: "Your {{planName}} booking {{orderId}} is confirmed",
		Body: "Hi {{customerName}},\n\n" +
			"We received your {{planName}} visa assistance booking for {{destination}} (departing {{departure}}).\n" +
			"Total: {{totalAmount}} {{currency}}\n" +
			"Reference: {{orderId}}\n\n" +
			"Our team will be in touch shortly.",
		SMS: "Booking {{orderId}} confirmed: {{planName}} for {{destination}}, {{totalAmount}} {{currency}}.",
	},
	TemplateOpsNewOrder: {
		Subject: "New order {{orderId}} ({{planName}})",
		Body:    "{{customerName}} booked {{planName}} for {{destination}} departing {{departure}}. Total {{totalAmount}} {{currency}}.",
	},
}

// renderTemplate replaces {{key}} placeholders and drops any left unresolved.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		switch t := v.(type) {
		case string:
			value = t
		case nil:
		default:
			value = fmt.Sprintf("%v", t)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}
