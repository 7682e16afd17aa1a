package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking-service/internal/model"
	"parking-service/internal/service"
)

// Request kinds a dashboard may send over its websocket.
const (
	KindGetStatistics        = "get_statistics"
	KindGetVehicleEntries    = "get_vehicle_entries"
	KindMarkAsPaid           = "mark_as_paid"
	KindDeleteEntry          = "delete_entry"
	KindGetUnpaidEntries     = "get_unpaid_entries"
	KindGetLatestUnpaidEntry = "get_latest_unpaid_entry"
	KindGetReceipt           = "get_receipt"
)

// Reply types sent back to the requesting dashboard only.
const (
	ReplyConnectionEstablished = "connection_established"
	ReplyStatistics            = "statistics_update"
	ReplyVehicleEntries        = "vehicle_entries_update"
	ReplyPayment               = "payment_update"
	ReplyEntryDeleted          = "entry_deleted"
	ReplyUnpaidEntries         = "unpaid_entries_update"
	ReplyLatestUnpaidEntry     = "latest_unpaid_entry_update"
	ReplyReceipt               = "receipt_data"
	ReplyError                 = "error"
)

const dateLayout = "2006-01-02"

// Kinds lists every request kind the dispatcher must serve.
func Kinds() []string {
	return []string{
		KindGetStatistics,
		KindGetVehicleEntries,
		KindMarkAsPaid,
		KindDeleteEntry,
		KindGetUnpaidEntries,
		KindGetLatestUnpaidEntry,
		KindGetReceipt,
	}
}

type Request struct {
	Type    string `json:"type"`
	Date    string `json:"date,omitempty"`
	Plate   string `json:"number_plate,omitempty"`
	Status  string `json:"status,omitempty"`
	EntryID string `json:"entry_id,omitempty"`
}

type Reply struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// Sessions is the part of the session manager the dashboard talks to.
type Sessions interface {
	StatisticsFor(ctx context.Context, date time.Time) (model.StatisticsSnapshot, error)
	SessionsFor(ctx context.Context, date time.Time, plateFilter string, status model.SessionStatus) ([]model.VehicleSession, error)
	UnpaidFor(ctx context.Context, date time.Time) ([]model.VehicleSession, error)
	LatestUnpaidFor(ctx context.Context, date time.Time) (*model.VehicleSession, error)
	ReceiptFor(ctx context.Context, sessionID uuid.UUID) (*model.Receipt, error)
	MarkPaid(ctx context.Context, sessionID uuid.UUID) (*model.VehicleSession, error)
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
}

type HandlerFunc func(ctx context.Context, req Request) (Reply, error)

type Dispatcher struct {
	handlers map[string]HandlerFunc
	sessions Sessions
	location *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

func NewDispatcher(sessions Sessions, location *time.Location, log zerolog.Logger) *Dispatcher {
	if location == nil {
		location = time.UTC
	}
	d := &Dispatcher{
		sessions: sessions,
		location: location,
		now:      time.Now,
		log:      log,
	}
	d.handlers = map[string]HandlerFunc{
		KindGetStatistics:        d.getStatistics,
		KindGetVehicleEntries:    d.getVehicleEntries,
		KindMarkAsPaid:           d.markAsPaid,
		KindDeleteEntry:          d.deleteEntry,
		KindGetUnpaidEntries:     d.getUnpaidEntries,
		KindGetLatestUnpaidEntry: d.getLatestUnpaidEntry,
		KindGetReceipt:           d.getReceipt,
	}
	return d
}

// WithClock replaces the clock used when a request carries no usable date.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Greeting is the first message every dashboard receives.
func (d *Dispatcher) Greeting() []byte {
	return d.encode(Reply{
		Type:    ReplyConnectionEstablished,
		Message: "connected to parking dashboard",
		Data:    map[string]interface{}{"kinds": Kinds(), "server_time": d.now().UTC()},
	})
}

// Dispatch decodes one inbound message and returns the encoded reply.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return d.encode(errorReply(fmt.Errorf("%w: malformed request: %v", service.ErrDecode, err)))
	}

	handler, ok := d.handlers[req.Type]
	if !ok {
		return d.encode(errorReply(fmt.Errorf("%w: unsupported request type %q", service.ErrInvalidInput, req.Type)))
	}

	reply, err := handler(ctx, req)
	if err != nil {
		if reason := service.Reason(err); reason == "internal-error" {
			d.log.Error().Err(err).Str("type", req.Type).Msg("dashboard request failed")
		}
		return d.encode(errorReply(err))
	}
	return d.encode(reply)
}

func (d *Dispatcher) getStatistics(ctx context.Context, req Request) (Reply, error) {
	date := d.parseDate(req.Date)
	stats, err := d.sessions.StatisticsFor(ctx, date)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Type: ReplyStatistics, Data: datedData(date, "statistics", stats)}, nil
}

func (d *Dispatcher) getVehicleEntries(ctx context.Context, req Request) (Reply, error) {
	date := d.parseDate(req.Date)
	sessions, err := d.sessions.SessionsFor(ctx, date, strings.TrimSpace(req.Plate), model.ParseSessionStatus(req.Status))
	if err != nil {
		return Reply{}, err
	}
	return Reply{Type: ReplyVehicleEntries, Data: datedData(date, "entries", model.SessionViews(sessions))}, nil
}

func (d *Dispatcher) markAsPaid(ctx context.Context, req Request) (Reply, error) {
	id, err := parseEntryID(req.EntryID)
	if err != nil {
		return Reply{}, err
	}
	session, err := d.sessions.MarkPaid(ctx, id)
	if err != nil {
		return Reply{}, err
	}

	var latest *model.SessionView
	next, err := d.sessions.LatestUnpaidFor(ctx, d.parseDate(req.Date))
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to load latest unpaid session after payment")
	} else if next != nil {
		view := next.View()
		latest = &view
	}

	return Reply{Type: ReplyPayment, Data: map[string]interface{}{
		"entry":               session.View(),
		"latest_unpaid_entry": latest,
	}}, nil
}

func (d *Dispatcher) deleteEntry(ctx context.Context, req Request) (Reply, error) {
	id, err := parseEntryID(req.EntryID)
	if err != nil {
		return Reply{}, err
	}
	if err := d.sessions.DeleteSession(ctx, id); err != nil {
		return Reply{}, err
	}
	return Reply{Type: ReplyEntryDeleted, Data: map[string]interface{}{"entry_id": id}}, nil
}

func (d *Dispatcher) getUnpaidEntries(ctx context.Context, req Request) (Reply, error) {
	date := d.parseDate(req.Date)
	sessions, err := d.sessions.UnpaidFor(ctx, date)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Type: ReplyUnpaidEntries, Data: datedData(date, "entries", model.SessionViews(sessions))}, nil
}

func (d *Dispatcher) getLatestUnpaidEntry(ctx context.Context, req Request) (Reply, error) {
	session, err := d.sessions.LatestUnpaidFor(ctx, d.parseDate(req.Date))
	if err != nil {
		return Reply{}, err
	}
	if session == nil {
		return Reply{Type: ReplyLatestUnpaidEntry, Data: nil}, nil
	}
	return Reply{Type: ReplyLatestUnpaidEntry, Data: session.View()}, nil
}

func (d *Dispatcher) getReceipt(ctx context.Context, req Request) (Reply, error) {
	id, err := parseEntryID(req.EntryID)
	if err != nil {
		return Reply{}, err
	}
	receipt, err := d.sessions.ReceiptFor(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Type: ReplyReceipt, Data: receipt}, nil
}

// parseDate falls back to today for missing or malformed dates.
func (d *Dispatcher) parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if parsed, err := time.ParseInLocation(dateLayout, raw, d.location); err == nil {
			return parsed
		}
	}
	return d.now().In(d.location)
}

func (d *Dispatcher) encode(reply Reply) []byte {
	payload, err := json.Marshal(reply)
	if err != nil {
		d.log.Error().Err(err).Str("type", reply.Type).Msg("failed to encode dashboard reply")
		payload, _ = json.Marshal(Reply{Type: ReplyError, Message: "internal error", Reason: "internal-error"})
	}
	return payload
}

func parseEntryID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid entry_id", service.ErrInvalidInput)
	}
	return id, nil
}

func datedData(date time.Time, key string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"date": date.Format(dateLayout),
		key:    value,
	}
}

func errorReply(err error) Reply {
	reason := service.Reason(err)
	message := err.Error()
	if errors.Is(err, service.ErrTransient) || reason == "internal-error" {
		message = "internal error"
	}
	return Reply{Type: ReplyError, Message: message, Reason: reason}
}
