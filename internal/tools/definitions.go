package tools

import (
	"encoding/json"

	"github.com/avilev/frontdesk/internal/protocol"
)

const (
	ToolListAvailableSlots = "list_available_slots"
	ToolCreateAppointment  = "create_appointment"
)

var listSlotsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"date": {
			"type": "string",
			"description": "Appointment date in YYYY-MM-DD format"
		}
	},
	"required": ["date"]
}`)

var createAppointmentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"customer_name": {
			"type": "string",
			"description": "Full name of the patient"
		},
		"phone": {
			"type": "string",
			"description": "Callback phone number"
		},
		"date": {
			"type": "string",
			"description": "Appointment date in YYYY-MM-DD format"
		},
		"time": {
			"type": "string",
			"description": "Slot label exactly as returned by list_available_slots, e.g. 9:30 AM"
		}
	},
	"required": ["customer_name", "phone", "date", "time"]
}`)

// Definitions lists the functions advertised to the model in
// session.update.
func Definitions() []protocol.ToolDefinition {
	return []protocol.ToolDefinition{
		{
			Type:        "function",
			Name:        ToolListAvailableSlots,
			Description: "List open appointment slots for a given date. Weekends have no slots.",
			Parameters:  listSlotsSchema,
		},
		{
			Type:        "function",
			Name:        ToolCreateAppointment,
			Description: "Book an appointment slot for a patient. Fails with slot_taken if the slot was just booked.",
			Parameters:  createAppointmentSchema,
		},
	}
}
