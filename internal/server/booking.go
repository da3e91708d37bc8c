package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/smallbiznis/railbook/internal/booking/domain"
)

func (s *Server) SearchCustomer(c *gin.Context) {
	var req bookingdomain.SearchCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bookingSvc.SearchCustomer(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListBookings(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}

	bookings, err := s.bookingSvc.List(c.Request.Context(), bookingdomain.ListBookingsRequest{
		CallerEmail: callerEmail(c),
		Email:       email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (s *Server) GetBooking(c *gin.Context) {
	detail, err := s.bookingSvc.Get(c.Request.Context(), bookingdomain.GetBookingRequest{
		CallerEmail: callerEmail(c),
		BookingID:   strings.TrimSpace(c.Param("bookingId")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) CreateBooking(c *gin.Context) {
	var req bookingdomain.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CallerEmail = callerEmail(c)

	resp, err := s.bookingSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateBooking(c *gin.Context) {
	var req bookingdomain.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CallerEmail = callerEmail(c)
	req.BookingID = strings.TrimSpace(c.Param("bookingId"))

	booking, err := s.bookingSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (s *Server) CancelBooking(c *gin.Context) {
	resp, err := s.bookingSvc.Cancel(c.Request.Context(), bookingdomain.CancelBookingRequest{
		CallerEmail: callerEmail(c),
		BookingID:   strings.TrimSpace(c.Param("bookingId")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
