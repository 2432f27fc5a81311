// Package billing validates usage input, persists saved usage events and
// prices a consumer's cumulative bill with the tariff engine.
package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/appliances"
	"github.com/bher20/wattscope/internal/logging"
	"github.com/bher20/wattscope/internal/metrics"
	"github.com/bher20/wattscope/internal/storage"
	"github.com/bher20/wattscope/internal/tariff"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
)

// CustomApplianceName labels usage entered with a raw wattage.
const CustomApplianceName = "Custom"

// Notifier is told whenever a user's saved usage changes.
type Notifier interface {
	BillChanged(ctx context.Context, user storage.User, s Summary) error
}

type Option func(*Service)

// WithNotifier registers a notifier called after saves and deletes.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	st       storage.Storage
	eng      *tariff.Engine
	notifier Notifier
	now      func() time.Time
	log      *zap.Logger
}

func NewService(st storage.Storage, eng *tariff.Engine, opts ...Option) *Service {
	if eng == nil {
		eng = tariff.DefaultEngine()
	}
	s := &Service{
		st:  st,
		eng: eng,
		now: time.Now,
		log: logging.Named("billing"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Engine returns the tariff engine prices are computed with.
func (s *Service) Engine() *tariff.Engine { return s.eng }

// UsageInput is an appliance run as entered by a consumer. ApplianceID picks
// a catalogue appliance; otherwise PowerWatts is used.
type UsageInput struct {
	ApplianceID string  `json:"appliance_id,omitempty"`
	PowerWatts  float64 `json:"power_watts,omitempty"`
	Hours       int     `json:"hours"`
	Minutes     int     `json:"minutes"`
}

// Usage is a validated UsageInput with the appliance resolved and minutes
// below 60.
type Usage struct {
	ApplianceID   string  `json:"appliance_id,omitempty"`
	ApplianceName string  `json:"appliance_name"`
	ApplianceIcon string  `json:"appliance_icon,omitempty"`
	PowerWatts    float64 `json:"power_watts"`
	Hours         int     `json:"hours"`
	Minutes       int     `json:"minutes"`
}

// Normalize validates in and resolves its appliance.
func Normalize(in UsageInput) (Usage, error) {
	u := Usage{
		ApplianceName: CustomApplianceName,
		PowerWatts:    in.PowerWatts,
		Hours:         in.Hours,
		Minutes:       in.Minutes,
	}
	if in.ApplianceID != "" {
		a, ok := appliances.Get(in.ApplianceID)
		if !ok {
			return Usage{}, fmt.Errorf("%w: unknown appliance %q", ErrInvalidArgument, in.ApplianceID)
		}
		u.ApplianceID = a.ID
		u.ApplianceName = a.Name
		u.ApplianceIcon = a.Icon
		u.PowerWatts = a.PowerWatts
	}

	if math.IsNaN(u.PowerWatts) || math.IsInf(u.PowerWatts, 0) || u.PowerWatts <= 0 {
		return Usage{}, fmt.Errorf("%w: power must be a positive number of watts", ErrInvalidArgument)
	}
	if u.Hours < 0 || u.Minutes < 0 {
		return Usage{}, fmt.Errorf("%w: hours and minutes cannot be negative", ErrInvalidArgument)
	}
	if u.Hours == 0 && u.Minutes == 0 {
		return Usage{}, fmt.Errorf("%w: please enter usage time", ErrInvalidArgument)
	}

	u.Hours += u.Minutes / 60
	u.Minutes %= 60
	return u, nil
}

// Estimate is a priced, unsaved usage.
type Estimate struct {
	Usage
	tariff.BillBreakdown
	Category  tariff.Category `json:"category"`
	SlabLabel string          `json:"slab_label"`
}

// Calculate prices a single usage for category without saving it.
func (s *Service) Calculate(ctx context.Context, in UsageInput, category tariff.Category) (Estimate, error) {
	if !category.Valid() {
		return Estimate{}, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, category)
	}
	u, err := Normalize(in)
	if err != nil {
		return Estimate{}, err
	}
	return s.estimate(u, category), nil
}

func (s *Service) estimate(u Usage, category tariff.Category) Estimate {
	b := s.eng.ComputeBill(u.PowerWatts, float64(u.Hours), float64(u.Minutes), category)
	label := s.eng.LabelForSlab(b.Units, category)
	metrics.ObserveCalculation(string(category), "single", label)
	return Estimate{Usage: u, BillBreakdown: b, Category: category, SlabLabel: label}
}

// Cumulative prices an arbitrary total consumption.
func (s *Service) Cumulative(totalUnits float64, category tariff.Category) (tariff.CumulativeBill, error) {
	if !category.Valid() {
		return tariff.CumulativeBill{}, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, category)
	}
	if math.IsNaN(totalUnits) || math.IsInf(totalUnits, 0) || totalUnits < 0 {
		return tariff.CumulativeBill{}, fmt.Errorf("%w: total units must be a non-negative number", ErrInvalidArgument)
	}
	bill := s.eng.ComputeCumulativeBill(totalUnits, category)
	metrics.ObserveCalculation(string(category), "cumulative", bill.SlabLabel)
	return bill, nil
}

func (s *Service) user(ctx context.Context, userID string) (*storage.User, error) {
	u, err := s.st.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return u, nil
}

// SaveUsage prices in with the user's category and stores it as a new
// usage event.
func (s *Service) SaveUsage(ctx context.Context, userID string, in UsageInput) (*storage.UsageEvent, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	u, err := Normalize(in)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	est := s.estimate(u, tariff.Category(user.Category))
	ev := storage.UsageEvent{
		ID:            id.String(),
		UserID:        user.ID,
		ApplianceID:   u.ApplianceID,
		ApplianceName: u.ApplianceName,
		ApplianceIcon: u.ApplianceIcon,
		PowerWatts:    u.PowerWatts,
		Hours:         u.Hours,
		Minutes:       u.Minutes,
		Units:         est.Units,
		RatePerUnit:   est.RatePerUnit,
		EnergyCost:    est.EnergyCost,
		FixedCharge:   est.FixedCharge,
		TotalCost:     est.TotalCost,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.st.CreateUsageEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("save usage event: %w", err)
	}
	metrics.UsageEventsTotal.WithLabelValues("saved").Inc()
	s.log.Debug("usage saved", zap.String("user_id", user.ID), zap.String("event_id", ev.ID), zap.Float64("units", ev.Units))

	s.notify(ctx, *user)
	return &ev, nil
}

// ListUsage returns the user's saved events, newest first.
func (s *Service) ListUsage(ctx context.Context, userID string) ([]storage.UsageEvent, error) {
	return s.st.ListUsageEvents(ctx, userID)
}

// DeleteUsage removes one of the user's events.
func (s *Service) DeleteUsage(ctx context.Context, userID, id string) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.st.DeleteUsageEvent(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete usage event: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: usage event %s", ErrNotFound, id)
	}
	metrics.UsageEventsTotal.WithLabelValues("deleted").Inc()

	s.notify(ctx, *user)
	return nil
}

func (s *Service) notify(ctx context.Context, user storage.User) {
	if s.notifier == nil {
		return
	}
	sum, err := s.SummaryFor(ctx, user)
	if err != nil {
		s.log.Warn("summary for notification failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	if err := s.notifier.BillChanged(ctx, user, *sum); err != nil {
		s.log.Warn("bill change notification failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// Summary is the cumulative bill across every saved event of a user.
type Summary struct {
	tariff.CumulativeBill
	UserID   string          `json:"user_id"`
	Category tariff.Category `json:"category"`
	Events   int             `json:"events"`
	// SavedTotal adds up the per-event totals as priced when saved. Each
	// carries its own fixed charge, so it differs from TotalCost.
	SavedTotal  float64   `json:"saved_total"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Summary loads the user and prices their cumulative bill.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.SummaryFor(ctx, *user)
}

// SummaryFor prices the cumulative bill of an already loaded user.
func (s *Service) SummaryFor(ctx context.Context, user storage.User) (*Summary, error) {
	events, err := s.st.ListUsageEvents(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.summarize(user, events), nil
}

func (s *Service) summarize(user storage.User, events []storage.UsageEvent) *Summary {
	units := make([]float64, len(events))
	saved := decimal.Zero
	for i, ev := range events {
		units[i] = ev.Units
		saved = saved.Add(decimal.NewFromFloat(ev.TotalCost))
	}

	category := tariff.Category(user.Category)
	bill := s.eng.ComputeCumulativeBill(tariff.SumUnits(units...), category)
	metrics.ObserveCalculation(string(category), "cumulative", bill.SlabLabel)

	return &Summary{
		CumulativeBill: bill,
		UserID:         user.ID,
		Category:       category,
		Events:         len(events),
		SavedTotal:     saved.Round(2).InexactFloat64(),
		GeneratedAt:    s.now().UTC(),
	}
}

// Statement bundles a summary with the events it covers, for exports.
type Statement struct {
	User    storage.User
	Summary Summary
	Events  []storage.UsageEvent
}

// Statement loads everything needed to export a user's bill.
func (s *Service) Statement(ctx context.Context, userID string) (*Statement, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	events, err := s.st.ListUsageEvents(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Statement{User: *user, Summary: *s.summarize(*user, events), Events: events}, nil
}
