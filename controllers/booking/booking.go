package booking

import (
	"errors"
	"fmt"
	"strconv"

	"classflow/logger"
	bookingModel "classflow/models/booking"
	"classflow/services/ledger"
	"classflow/types"
	bookingTypes "classflow/types/booking"
	"classflow/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// BookingController handles booking-related HTTP requests
type BookingController struct {
	DB     *gorm.DB
	Ledger *ledger.Service
	Logger *logger.AsyncLogger
}

// NewBookingController creates a new booking controller
func NewBookingController(db *gorm.DB, ledgerSvc *ledger.Service, asyncLogger *logger.AsyncLogger) *BookingController {
	return &BookingController{
		DB:     db,
		Ledger: ledgerSvc,
		Logger: asyncLogger,
	}
}

// Book reserves a seat on a schedule for the authenticated customer
func (bc *BookingController) Book(c *fiber.Ctx) error {
	var req bookingTypes.BookRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	userInfo, err := utils.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "User not found",
			Data:    nil,
		})
	}

	b, err := bc.Ledger.Reserve(ledger.ReserveRequest{
		ScheduleID: req.ScheduleID,
		UserID:     &userInfo.ID,
		GuestEmail: req.GuestEmail,
		UseCredits: req.UseCredits,
		CouponCode: req.CouponCode,
		CreatedBy:  utils.ActorLabel(userInfo),
	})
	if err != nil {
		return bc.reserveError(c, err)
	}

	resp := bookingTypes.BookResponse{
		BookingID:     b.ID,
		Status:        b.Status.String(),
		PaymentMode:   string(b.PaymentMode),
		AmountCents:   b.AmountCents,
		DiscountCents: b.DiscountCents,
		Currency:      b.Currency,
	}

	// Load intake flag from the class template.
	if full, err := bc.Ledger.Get(b.ID); err == nil {
		resp.IntakeRequired = full.Schedule.Class.RequiresIntake
	}

	// Payment is a separate step; a gateway failure here leaves the booking
	// pending so the customer can retry checkout.
	if b.Status == bookingModel.BookingStatusPending && b.PaymentMode == bookingModel.PaymentModePaid {
		url, err := bc.Ledger.StartPayment(b.ID)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to start payment for booking %d", b.ID), err)
		} else {
			resp.CheckoutURL = url
		}
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Booking created successfully",
		Data:    resp,
	})
}

// Cancel is the self-service cancellation of the owning customer. The
// response always explains the applied fee/credit outcome.
func (bc *BookingController) Cancel(c *fiber.Ctx) error {
	bookingID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid booking id",
			Data:    nil,
		})
	}

	userInfo, err := utils.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "User not found",
			Data:    nil,
		})
	}

	b, err := bc.Ledger.Get(uint(bookingID))
	if err != nil {
		return bc.notFoundOrInternal(c, err)
	}
	if b.UserID == nil || *b.UserID != userInfo.ID {
		return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
			Status:  fiber.StatusForbidden,
			Message: "Booking belongs to another customer",
			Data:    nil,
		})
	}

	outcome, err := bc.Ledger.Cancel(uint(bookingID), utils.ActorLabel(userInfo))
	if err != nil {
		if errors.Is(err, ledger.ErrNotCancelable) {
			return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
				Status:  fiber.StatusConflict,
				Message: "Booking cannot be canceled",
				Data:    nil,
			})
		}
		logger.Error("Failed to cancel booking", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to cancel booking",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Booking canceled",
		Data: bookingTypes.CancelResponse{
			Status:      bookingModel.BookingStatusCanceled.String(),
			RefundCents: outcome.RefundCents,
			Credited:    outcome.CreditRestored,
			FeeCents:    outcome.FeeCents,
			FeeLabel:    outcome.FeeLabel,
		},
	})
}

// Reschedule moves the booking to another schedule of the same class
func (bc *BookingController) Reschedule(c *fiber.Ctx) error {
	bookingID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid booking id",
			Data:    nil,
		})
	}

	var req bookingTypes.RescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	userInfo, err := utils.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "User not found",
			Data:    nil,
		})
	}

	existing, err := bc.Ledger.Get(uint(bookingID))
	if err != nil {
		return bc.notFoundOrInternal(c, err)
	}
	if existing.UserID == nil || *existing.UserID != userInfo.ID {
		return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
			Status:  fiber.StatusForbidden,
			Message: "Booking belongs to another customer",
			Data:    nil,
		})
	}

	moved, err := bc.Ledger.Reschedule(uint(bookingID), req.TargetScheduleID, utils.ActorLabel(userInfo))
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrClassMismatch):
			return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
				Status:  fiber.StatusConflict,
				Message: "Transfers must stay within the same class offering",
				Data:    nil,
			})
		case errors.Is(err, ledger.ErrSlotFull):
			return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
				Status:  fiber.StatusConflict,
				Message: "Target schedule is full",
				Data:    nil,
			})
		case errors.Is(err, ledger.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
				Status:  fiber.StatusBadRequest,
				Message: err.Error(),
				Data:    nil,
			})
		}
		logger.Error("Failed to reschedule booking", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to reschedule booking",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Booking rescheduled successfully",
		Data:    moved,
	})
}

// AdminCancel lets staff cancel with a forced or automatic monetary outcome
func (bc *BookingController) AdminCancel(c *fiber.Ctx) error {
	bookingID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid booking id",
			Data:    nil,
		})
	}

	var req bookingTypes.AdminCancelRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	userInfo, err := utils.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "User not found",
			Data:    nil,
		})
	}

	outcome, err := bc.Ledger.AdminCancel(uint(bookingID), req.Action, req.Note, req.Notify, utils.ActorLabel(userInfo))
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Status:  fiber.StatusNotFound,
				Message: "Booking not found",
				Data:    nil,
			})
		case errors.Is(err, ledger.ErrNotCancelable):
			return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
				Status:  fiber.StatusConflict,
				Message: "Booking cannot be canceled",
				Data:    nil,
			})
		case errors.Is(err, ledger.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
				Status:  fiber.StatusBadRequest,
				Message: err.Error(),
				Data:    nil,
			})
		}
		logger.Error("Failed to admin-cancel booking", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to cancel booking",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Booking canceled",
		Data: bookingTypes.CancelResponse{
			Status:      bookingModel.BookingStatusCanceled.String(),
			RefundCents: outcome.RefundCents,
			Credited:    outcome.CreditRestored,
			FeeCents:    outcome.FeeCents,
			FeeLabel:    outcome.FeeLabel,
		},
	})
}

// MarkAttendance records check-in or no-show for a booking
func (bc *BookingController) MarkAttendance(c *fiber.Ctx) error {
	bookingID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid booking id",
			Data:    nil,
		})
	}

	var req bookingTypes.AttendanceRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", err)
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid request body",
			Data:    nil,
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}

	userInfo, err := utils.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "User not found",
			Data:    nil,
		})
	}

	outcome, err := bc.Ledger.MarkAttendance(uint(bookingID), bookingModel.AttendanceStatus(req.Attendance), utils.ActorLabel(userInfo))
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
				Status:  fiber.StatusNotFound,
				Message: "Booking not found",
				Data:    nil,
			})
		case errors.Is(err, ledger.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
				Status:  fiber.StatusBadRequest,
				Message: err.Error(),
				Data:    nil,
			})
		}
		logger.Error("Failed to mark attendance", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to mark attendance",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Attendance recorded",
		Data:    outcome,
	})
}

// reserveError maps ledger reservation failures to API responses. A full
// class always points the customer at the waitlist instead of a bare
// failure.
func (bc *BookingController) reserveError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ledger.ErrSlotFull):
		return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
			Status:  fiber.StatusConflict,
			Message: "Class is full. Join the waitlist to be offered the next free seat",
			Data:    fiber.Map{"waitlist_available": true},
		})
	case errors.Is(err, ledger.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	}
	logger.Error("Failed to create booking", err)
	return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
		Status:  fiber.StatusInternalServerError,
		Message: "Failed to create booking",
		Data:    nil,
	})
}

func (bc *BookingController) notFoundOrInternal(c *fiber.Ctx, err error) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Message: "Booking not found",
			Data:    nil,
		})
	}
	logger.Error("Failed to load booking", err)
	return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
		Status:  fiber.StatusInternalServerError,
		Message: "Internal server error",
		Data:    nil,
	})
}
