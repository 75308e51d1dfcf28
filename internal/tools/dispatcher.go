package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avilev/frontdesk/internal/booking"
)

// Transcript receives the tool-call and tool-result entries for one
// call. Implementations must not block; the session cache writer
// enqueues and returns.
type Transcript interface {
	AppendToolCall(callSID, name string, arguments json.RawMessage)
	AppendToolResult(callSID, name string, result json.RawMessage)
}

// LatencyObserver records dispatch wall-clock duration.
type LatencyObserver interface {
	ObserveToolCall(name string, duration time.Duration)
}

// Dispatcher executes model-requested functions against the booking
// store. Results are always JSON; failures are encoded as error
// payloads for the model to verbalize, never surfaced as Go errors to
// the caller.
type Dispatcher struct {
	store      booking.Store
	transcript Transcript
	latency    LatencyObserver
	log        *logrus.Entry
}

func NewDispatcher(store booking.Store, transcript Transcript, latency LatencyObserver, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{store: store, transcript: transcript, latency: latency, log: log}
}

type listSlotsArgs struct {
	Date string `json:"date"`
}

type createAppointmentArgs struct {
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Date         string `json:"date"`
	Time         string `json:"time"`
}

type listSlotsResult struct {
	AvailableSlots []string `json:"available_slots"`
}

type bookingSuccess struct {
	Success            bool   `json:"success"`
	ConfirmationNumber string `json:"confirmation_number"`
}

type bookingFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type toolFault struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Dispatch runs one tool invocation and returns the JSON result to hand
// back to the model as function_call_output.
func (d *Dispatcher) Dispatch(ctx context.Context, callSID, name string, arguments string) json.RawMessage {
	start := time.Now()
	if d.transcript != nil {
		d.transcript.AppendToolCall(callSID, name, json.RawMessage(arguments))
	}

	var result json.RawMessage
	switch name {
	case ToolListAvailableSlots:
		result = d.listAvailableSlots(ctx, arguments)
	case ToolCreateAppointment:
		result = d.createAppointment(ctx, callSID, arguments)
	default:
		d.log.WithField("tool", name).Warn("unknown tool requested")
		result = mustMarshal(toolFault{Error: true, Message: "unknown tool"})
	}

	elapsed := time.Since(start)
	if d.latency != nil {
		d.latency.ObserveToolCall(name, elapsed)
	}
	if d.transcript != nil {
		d.transcript.AppendToolResult(callSID, name, result)
	}
	d.log.WithFields(logrus.Fields{
		"tool":        name,
		"call_sid":    callSID,
		"duration_ms": elapsed.Milliseconds(),
	}).Info("tool dispatched")
	return result
}

func (d *Dispatcher) listAvailableSlots(ctx context.Context, arguments string) json.RawMessage {
	var args listSlotsArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return mustMarshal(toolFault{Error: true, Message: "invalid arguments"})
	}
	slots, err := d.store.AvailableSlots(ctx, args.Date)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidDate) {
			return mustMarshal(toolFault{Error: true, Message: "please give the date as year-month-day"})
		}
		d.log.WithError(err).Error("availability query failed")
		return mustMarshal(toolFault{Error: true, Message: "could not check availability"})
	}
	return mustMarshal(listSlotsResult{AvailableSlots: slots})
}

func (d *Dispatcher) createAppointment(ctx context.Context, callSID, arguments string) json.RawMessage {
	var args createAppointmentArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return mustMarshal(toolFault{Error: true, Message: "invalid arguments"})
	}
	appt, err := d.store.CreateAppointment(ctx, booking.BookingRequest{
		CustomerName: args.CustomerName,
		PhoneNumber:  args.Phone,
		Date:         args.Date,
		Time:         args.Time,
		CallSID:      callSID,
	})
	switch {
	case err == nil:
		return mustMarshal(bookingSuccess{Success: true, ConfirmationNumber: appt.ConfirmationNumber})
	case errors.Is(err, booking.ErrSlotTaken):
		return mustMarshal(bookingFailure{Success: false, Error: "slot_taken"})
	case errors.Is(err, booking.ErrInvalidDate):
		return mustMarshal(bookingFailure{Success: false, Error: "invalid_date"})
	case errors.Is(err, booking.ErrInvalidSlot):
		return mustMarshal(bookingFailure{Success: false, Error: "invalid_time"})
	default:
		d.log.WithError(err).Error("appointment insert failed")
		return mustMarshal(toolFault{Error: true, Message: "could not book the appointment"})
	}
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"error":true,"message":"internal"}`)
	}
	return raw
}
