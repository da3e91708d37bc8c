package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/railbook/internal/booking/domain"
	"github.com/smallbiznis/railbook/internal/clock"
	"github.com/smallbiznis/railbook/internal/commerce"
	"github.com/smallbiznis/railbook/internal/config"
	"github.com/smallbiznis/railbook/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Gateway commerce.Gateway
	Cfg     config.Config
	Clock   clock.Clock
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	gateway     commerce.Gateway
	clock       clock.Clock
	locationID  string
	redirectURL string
}

var _ domain.Service = (*Service)(nil)

func NewService(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("booking.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		gateway:     p.Gateway,
		clock:       c,
		locationID:  p.Cfg.Square.LocationID,
		redirectURL: p.Cfg.CheckoutRedirectURL,
	}
}

func (s *Service) SearchCustomer(ctx context.Context, req domain.SearchCustomerRequest) (domain.SearchCustomerResponse, error) {
	email := strings.TrimSpace(req.EmailAddress)
	if email == "" {
		return domain.SearchCustomerResponse{}, domain.ErrInvalidEmail
	}
	customerID, err := s.customerID(ctx, strings.TrimSpace(req.GivenName), strings.TrimSpace(req.FamilyName), email)
	if err != nil {
		return domain.SearchCustomerResponse{}, err
	}
	return domain.SearchCustomerResponse{CustomerID: customerID}, nil
}

// customerID returns the first customer matching email and both names,
// creating one when none exists.
func (s *Service) customerID(ctx context.Context, givenName, familyName, email string) (string, error) {
	customers, err := s.gateway.SearchCustomersByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	for _, c := range customers {
		if c.GivenName == givenName && c.FamilyName == familyName {
			return c.ID, nil
		}
	}

	created, err := s.gateway.CreateCustomer(ctx, commerce.Customer{
		GivenName:    givenName,
		FamilyName:   familyName,
		EmailAddress: email,
	})
	if err != nil {
		return "", err
	}
	s.log.Info("customer created", zap.String("customer_id", created.ID))
	return created.ID, nil
}

func (s *Service) List(ctx context.Context, req domain.ListBookingsRequest) ([]json.RawMessage, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}
	if email != strings.TrimSpace(req.CallerEmail) {
		return nil, domain.ErrAuthorizationMismatch
	}

	records, err := s.repo.Find(ctx, s.db, domain.Filter{Email: email, Status: domain.StatusAccepted})
	if err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, len(records))
	for _, record := range records {
		if !record.HasSnapshot() {
			continue
		}
		merged, err := mergeSnapshot(record)
		if err != nil {
			s.log.Warn("skipping unreadable booking snapshot",
				zap.String("booking_id", record.BookingID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, merged)
	}
	return out, nil
}

// mergeSnapshot adds serviceNames to the stored booking object. Values stay
// as raw JSON so integers wider than float64 keep every digit.
func mergeSnapshot(record domain.Record) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(record.RawBooking), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	names, err := json.Marshal([]string(record.ServiceNames))
	if err != nil {
		return nil, err
	}
	fields["serviceNames"] = names
	return json.Marshal(fields)
}

func (s *Service) Get(ctx context.Context, req domain.GetBookingRequest) (detail domain.BookingDetail, err error) {
	bookingID := strings.TrimSpace(req.BookingID)
	if bookingID == "" {
		return domain.BookingDetail{}, domain.ErrInvalidBookingID
	}

	ctx, end := tracing.Start(ctx, "booking.get", attribute.String("booking_id", bookingID))
	defer func() { end(err) }()

	record, err := s.repo.FindOne(ctx, s.db, domain.Filter{BookingID: bookingID, Status: domain.StatusAccepted})
	if err != nil {
		return domain.BookingDetail{}, err
	}
	if record == nil {
		return domain.BookingDetail{}, domain.ErrGone
	}
	if record.Email != strings.TrimSpace(req.CallerEmail) {
		return domain.BookingDetail{}, domain.ErrAuthorizationMismatch
	}

	booking, err := s.gateway.RetrieveBooking(ctx, record.BookingID)
	if err != nil {
		return domain.BookingDetail{}, err
	}
	detail.Booking = rawOf(booking.Raw, booking)

	objectIDs := make([]string, 0, len(booking.AppointmentSegments))
	for _, segment := range booking.AppointmentSegments {
		objectIDs = append(objectIDs, segment.ServiceVariationID)
	}
	teamMemberID := ""
	if len(booking.AppointmentSegments) > 0 {
		teamMemberID = booking.AppointmentSegments[0].TeamMemberID
	}

	g, gctx := errgroup.WithContext(ctx)
	if len(objectIDs) > 0 {
		g.Go(func() error {
			catalog, err := s.gateway.BatchRetrieveCatalogObjects(gctx, objectIDs, true)
			if err != nil {
				return err
			}
			detail.Objects = catalog.Objects
			detail.RelatedObjects = catalog.RelatedObjects
			return nil
		})
	}
	if teamMemberID != "" {
		g.Go(func() error {
			member, err := s.gateway.RetrieveTeamMember(gctx, teamMemberID)
			if err != nil {
				return err
			}
			detail.TeamMember = member
			return nil
		})
	}
	if record.PaymentLinkID != "" {
		g.Go(func() error {
			link, err := s.gateway.RetrievePaymentLink(gctx, record.PaymentLinkID)
			if err != nil {
				return err
			}
			detail.PaymentLink = rawOf(link.Raw, link)
			return nil
		})
	}
	if record.OrderID != "" {
		g.Go(func() error {
			order, err := s.gateway.RetrieveOrder(gctx, record.OrderID)
			if err != nil {
				return err
			}
			detail.Order = rawOf(order.Raw, order)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BookingDetail{}, err
	}
	return detail, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateBookingRequest) (domain.CreateBookingResponse, error) {
	input := req.Booking
	if err := validateInput(input); err != nil {
		return domain.CreateBookingResponse{}, err
	}
	email := strings.TrimSpace(input.EmailAddress)
	if email != strings.TrimSpace(req.CallerEmail) {
		return domain.CreateBookingResponse{}, domain.ErrAuthorizationMismatch
	}

	customerID, err := s.customerID(ctx, strings.TrimSpace(input.GivenName), strings.TrimSpace(input.FamilyName), email)
	if err != nil {
		return domain.CreateBookingResponse{}, err
	}

	booking, err := s.gateway.CreateBooking(ctx, commerce.Booking{
		CustomerID:          customerID,
		LocationID:          s.locationID,
		StartAt:             input.StartAt,
		CustomerNote:        input.CustomerNote,
		AppointmentSegments: toCommerceSegments(input.AppointmentSegments),
	})
	if err != nil {
		return domain.CreateBookingResponse{}, err
	}

	names := serviceNames(input.Services)
	link, err := s.gateway.CreatePaymentLink(ctx, commerce.QuickPay{
		Name:        strings.Join(names, ", "),
		Price:       totalPrice(input.Services),
		LocationID:  s.locationID,
		Description: "Booking " + booking.ID,
		RedirectURL: s.redirectURL,
	})
	if err != nil {
		s.log.Error("payment link failed after booking was created",
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
		return domain.CreateBookingResponse{}, err
	}

	raw := rawOf(booking.Raw, booking)
	now := s.clock.Now()
	record := domain.Record{
		ID:            s.genID.Generate(),
		Email:         email,
		CustomerID:    customerID,
		BookingID:     booking.ID,
		OrderID:       link.OrderID,
		PaymentLinkID: link.ID,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        booking.Status,
		RawBooking:    string(raw),
		ServiceNames:  names,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, s.db, &record); err != nil {
		return domain.CreateBookingResponse{}, err
	}

	s.log.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("payment_link_id", link.ID),
	)
	return domain.CreateBookingResponse{Booking: raw}, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateBookingRequest) (json.RawMessage, error) {
	record, err := s.ownedAccepted(ctx, req.BookingID, req.CallerEmail)
	if err != nil {
		return nil, err
	}
	patch := req.Booking
	if patch.StartAt == "" && patch.CustomerNote == "" && len(patch.AppointmentSegments) == 0 {
		return nil, domain.ErrEmptyUpdate
	}

	updated, err := s.gateway.UpdateBooking(ctx, record.BookingID, commerce.Booking{
		Version:             patch.Version,
		StartAt:             patch.StartAt,
		CustomerNote:        patch.CustomerNote,
		AppointmentSegments: toCommerceSegments(patch.AppointmentSegments),
	})
	if err != nil {
		return nil, err
	}

	names := req.ServiceNames
	if names == nil {
		names = []string(record.ServiceNames)
	}
	raw := rawOf(updated.Raw, updated)
	err = s.repo.UpdateFields(ctx, s.db, record.ID, domain.Fields{
		Snapshot: &domain.Snapshot{RawBooking: string(raw), ServiceNames: names},
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) Cancel(ctx context.Context, req domain.CancelBookingRequest) (domain.CancelBookingResponse, error) {
	record, err := s.ownedAccepted(ctx, req.BookingID, req.CallerEmail)
	if err != nil {
		return domain.CancelBookingResponse{}, err
	}
	if !domain.CanTransition(record.Status, domain.StatusCancelledByCustomer) {
		return domain.CancelBookingResponse{}, domain.ErrInvalidTransition
	}

	current, err := s.gateway.RetrieveBooking(ctx, record.BookingID)
	if err != nil {
		return domain.CancelBookingResponse{}, err
	}
	if _, err := s.gateway.CancelBooking(ctx, record.BookingID, current.Version); err != nil {
		return domain.CancelBookingResponse{}, err
	}

	status := domain.StatusCancelledByCustomer
	if err := s.repo.UpdateFields(ctx, s.db, record.ID, domain.Fields{Status: &status}); err != nil {
		return domain.CancelBookingResponse{}, err
	}
	s.log.Info("booking cancelled", zap.String("booking_id", record.BookingID))
	return domain.CancelBookingResponse{BookingID: record.BookingID, Cancelled: true}, nil
}

func (s *Service) ownedAccepted(ctx context.Context, bookingID, callerEmail string) (*domain.Record, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, domain.ErrInvalidBookingID
	}
	record, err := s.repo.FindOne(ctx, s.db, domain.Filter{BookingID: bookingID, Status: domain.StatusAccepted})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}
	if record.Email != strings.TrimSpace(callerEmail) {
		return nil, domain.ErrAuthorizationMismatch
	}
	return record, nil
}

func validateInput(input domain.BookingInput) error {
	if strings.TrimSpace(input.EmailAddress) == "" {
		return domain.ErrInvalidEmail
	}
	if strings.TrimSpace(input.StartAt) == "" {
		return domain.ErrInvalidStartAt
	}
	if len(input.AppointmentSegments) == 0 {
		return domain.ErrInvalidSegments
	}
	for _, segment := range input.AppointmentSegments {
		if segment.ServiceVariationID == "" || segment.TeamMemberID == "" {
			return domain.ErrInvalidSegments
		}
	}
	if len(input.Services) == 0 {
		return domain.ErrInvalidServices
	}
	currency := input.Services[0].Currency
	for _, svc := range input.Services {
		if strings.TrimSpace(svc.Name) == "" || svc.Amount < 0 || svc.Currency != currency {
			return domain.ErrInvalidServices
		}
	}
	return nil
}

func serviceNames(services []domain.ServiceLine) []string {
	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.Name)
	}
	return names
}

func totalPrice(services []domain.ServiceLine) commerce.Money {
	var total int64
	for _, svc := range services {
		total += svc.Amount
	}
	return commerce.Money{Amount: total, Currency: services[0].Currency}
}

func toCommerceSegments(segments []domain.AppointmentSegment) []commerce.AppointmentSegment {
	if len(segments) == 0 {
		return nil
	}
	out := make([]commerce.AppointmentSegment, 0, len(segments))
	for _, s := range segments {
		out = append(out, commerce.AppointmentSegment{
			DurationMinutes:         s.DurationMinutes,
			ServiceVariationID:      s.ServiceVariationID,
			TeamMemberID:            s.TeamMemberID,
			ServiceVariationVersion: s.ServiceVariationVersion,
		})
	}
	return out
}

// rawOf prefers the bytes the gateway returned and falls back to re-encoding v.
func rawOf(raw json.RawMessage, v any) json.RawMessage {
	if len(raw) > 0 {
		return raw
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return encoded
}
