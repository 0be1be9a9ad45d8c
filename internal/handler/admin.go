package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/flight-seat-reservation/internal/engine"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// State is the read side of the engine the admin API exposes.
type State interface {
	Consult() []model.Flight
	Flight(ref int) (model.Flight, bool)
	Invoice(agency int) (decimal.Decimal, error)
	History(w io.Writer) error
}

// AdminHandler serves read-only views of the reservation state.
type AdminHandler struct {
	State State
}

func NewAdminHandler(s State) *AdminHandler {
	return &AdminHandler{State: s}
}

type flightResp struct {
	Ref         int    `json:"ref"`
	Destination string `json:"destination"`
	Seats       int    `json:"seats"`
	Price       int    `json:"price"`
}

func toFlightResp(f model.Flight) flightResp {
	return flightResp{Ref: f.Ref, Destination: f.Destination, Seats: f.Seats, Price: f.Price}
}

type invoiceResp struct {
	Agency int    `json:"agency"`
	Amount string `json:"amount"`
}

// ListFlights returns the whole catalog in file order.
func (h *AdminHandler) ListFlights(c echo.Context) error {
	flights := h.State.Consult()
	out := make([]flightResp, 0, len(flights))
	for _, f := range flights {
		out = append(out, toFlightResp(f))
	}
	return c.JSON(http.StatusOK, out)
}

// GetFlight returns one flight by reference.
func (h *AdminHandler) GetFlight(c echo.Context) error {
	ref, err := strconv.Atoi(c.Param("ref"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid flight reference"})
	}
	f, ok := h.State.Flight(ref)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "flight not found"})
	}
	return c.JSON(http.StatusOK, toFlightResp(f))
}

// GetInvoice returns the balance of one agency.
func (h *AdminHandler) GetInvoice(c echo.Context) error {
	agency, err := strconv.Atoi(c.Param("agency"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid agency id"})
	}
	amount, err := h.State.Invoice(agency)
	if errors.Is(err, engine.ErrInvalid) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, invoiceResp{Agency: agency, Amount: amount.StringFixed(2)})
}

// GetHistory streams the raw transaction log as plain text.
func (h *AdminHandler) GetHistory(c echo.Context) error {
	var buf bytes.Buffer
	if err := h.State.History(&buf); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "history unavailable"})
	}
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, buf.Bytes())
}
