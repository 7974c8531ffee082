package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/smartrent-ledger/internal/engine"
	"github.com/iliyamo/smartrent-ledger/internal/model"
)

type termsReq struct {
	PricePerDay decimal.Decimal `json:"price_per_day"`
}

type bookReq struct {
	CheckIn  string          `json:"check_in"`
	CheckOut string          `json:"check_out"`
	Payment  decimal.Decimal `json:"payment"`
}

// interval reads check_in/check_out from raw values or writes 400.
func interval(c echo.Context, rawIn, rawOut string) (time.Time, time.Time, bool, error) {
	in, err := parseDay(rawIn)
	if err != nil {
		return time.Time{}, time.Time{}, false, badRequest(c, "invalid check_in")
	}
	out, err := parseDay(rawOut)
	if err != nil {
		return time.Time{}, time.Time{}, false, badRequest(c, "invalid check_out")
	}
	return in, out, true, nil
}

// SetTerms: PUT /v1/assets/:id/terms (top shareholder only).
func (h *LedgerHandler) SetTerms(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var req termsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	terms, err := h.Engine.SetRentalTerms(c.Request().Context(), caller, engine.TermsInput{
		AssetID:     assetID,
		PricePerDay: req.PricePerDay,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, terms)
}

// GetTerms: GET /v1/assets/:id/terms
func (h *LedgerHandler) GetTerms(c echo.Context) error {
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	terms, err := h.Engine.Terms(assetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, terms)
}

// Book: POST /v1/assets/:id/bookings
func (h *LedgerHandler) Book(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in, out, ok, err := interval(c, req.CheckIn, req.CheckOut)
	if !ok {
		return err
	}
	b, err := h.Engine.BookRental(c.Request().Context(), caller, engine.BookInput{
		AssetID:  assetID,
		CheckIn:  in,
		CheckOut: out,
		Payment:  req.Payment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// transition runs one booking state change addressed by :id.
func (h *LedgerHandler) transition(c echo.Context, op func(engine.BookingRef) (model.Booking, error)) error {
	bookingID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	b, err := op(engine.BookingRef{BookingID: bookingID})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Activate: POST /v1/bookings/:id/activate
func (h *LedgerHandler) Activate(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	return h.transition(c, func(ref engine.BookingRef) (model.Booking, error) {
		return h.Engine.ActivateRental(c.Request().Context(), caller, ref)
	})
}

// Complete: POST /v1/bookings/:id/complete
func (h *LedgerHandler) Complete(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	return h.transition(c, func(ref engine.BookingRef) (model.Booking, error) {
		return h.Engine.CompleteRental(c.Request().Context(), caller, ref)
	})
}

// CancelBooking: DELETE /v1/bookings/:id (renter only).
func (h *LedgerHandler) CancelBooking(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	return h.transition(c, func(ref engine.BookingRef) (model.Booking, error) {
		return h.Engine.CancelRental(c.Request().Context(), caller, ref)
	})
}

// GetBooking: GET /v1/bookings/:id
func (h *LedgerHandler) GetBooking(c echo.Context) error {
	bookingID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	b, err := h.Engine.Booking(bookingID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// AssetBookings: GET /v1/assets/:id/bookings
func (h *LedgerHandler) AssetBookings(c echo.Context) error {
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	p := pageFrom(c)
	items, total, err := h.Engine.BookingsByAsset(assetID, p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, paged(items, total, p))
}

// BookedDates: GET /v1/assets/:id/booked-dates lists the intervals held by
// pending and active bookings.
func (h *LedgerHandler) BookedDates(c echo.Context) error {
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	ranges, err := h.Engine.BookedRanges(assetID)
	if err != nil {
		return respondError(c, err)
	}
	if ranges == nil {
		ranges = []model.DateRange{}
	}
	return c.JSON(http.StatusOK, echo.Map{"asset_id": assetID, "ranges": ranges})
}

// Availability: GET /v1/assets/:id/availability?check_in=&check_out=
func (h *LedgerHandler) Availability(c echo.Context) error {
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	in, out, ok, err := interval(c, c.QueryParam("check_in"), c.QueryParam("check_out"))
	if !ok {
		return err
	}
	free, err := h.Engine.DatesAvailable(assetID, in, out)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"asset_id": assetID, "check_in": in, "check_out": out, "available": free})
}

// Rent: GET /v1/assets/:id/rent
func (h *LedgerHandler) Rent(c echo.Context) error {
	assetID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	summary, err := h.Engine.Rent(assetID)
	if err != nil {
		return respondError(c, err)
	}
	if summary.Payments == nil {
		summary.Payments = []model.RentPayment{}
	}
	return c.JSON(http.StatusOK, summary)
}

// Access: GET /v1/bookings/:id/access?holder= answers the lock actuator.
func (h *LedgerHandler) Access(c echo.Context) error {
	bookingID, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	holder, ok, err := parseAddressParam(c, c.QueryParam("holder"), "holder")
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id": bookingID,
		"holder":     holder,
		"granted":    h.Engine.AccessGranted(bookingID, holder),
	})
}

// MyBookings: GET /v1/my/bookings
func (h *LedgerHandler) MyBookings(c echo.Context) error {
	caller, ok, err := callerAddress(c)
	if !ok {
		return err
	}
	items := h.Engine.BookingsByRenter(caller)
	if items == nil {
		items = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"renter": caller, "bookings": items})
}
