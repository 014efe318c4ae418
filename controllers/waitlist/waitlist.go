package waitlist

import (
	"errors"

	"classflow/logger"
	"classflow/services/waitlist"
	"classflow/types"
	waitlistTypes "classflow/types/waitlist"
	"classflow/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// WaitlistController handles waitlist-related HTTP requests
type WaitlistController struct {
	DB          *gorm.DB
	Coordinator *waitlist.Coordinator
	Logger      *logger.AsyncLogger
}

// NewWaitlistController creates a new waitlist controller
func NewWaitlistController(db *gorm.DB, coordinator *waitlist.Coordinator, asyncLogger *logger.AsyncLogger) *WaitlistController {
	return &WaitlistController{
		DB:          db,
		Coordinator: coordinator,
		Logger:      asyncLogger,
	}
}

// Join appends the caller to a schedule's waitlist queue. Works for
// authenticated customers and guests alike; guests queue by email.
func (wc *WaitlistController) Join(c *fiber.Ctx) error {
	var req waitlistTypes.JoinRequest
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

	var userID *uint
	if userInfo, err := utils.CurrentUser(c); err == nil {
		userID = &userInfo.ID
	}

	entry, err := wc.Coordinator.Join(req.ScheduleID, userID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, waitlist.ErrAlreadyQueued):
			return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
				Status:  fiber.StatusConflict,
				Message: "Already on the waitlist for this schedule",
				Data:    nil,
			})
		case errors.Is(err, waitlist.ErrValidation):
			return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
				Status:  fiber.StatusBadRequest,
				Message: err.Error(),
				Data:    nil,
			})
		}
		logger.Error("Failed to join waitlist", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to join waitlist",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Added to waitlist",
		Data:    entry,
	})
}

// Accept claims an offered seat by its token. The link arrives by email,
// so this is a token-authenticated GET.
func (wc *WaitlistController) Accept(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Missing offer token",
			Data:    nil,
		})
	}

	b, checkoutURL, err := wc.Coordinator.Accept(token)
	if err != nil {
		return wc.offerError(c, err, "Failed to accept offer")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Seat claimed successfully",
		Data: waitlistTypes.AcceptResponse{
			OK:          true,
			Booking:     b,
			CheckoutURL: checkoutURL,
		},
	})
}

// Deny releases an offered seat back to the queue
func (wc *WaitlistController) Deny(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Missing offer token",
			Data:    nil,
		})
	}

	if err := wc.Coordinator.Decline(token); err != nil {
		return wc.offerError(c, err, "Failed to decline offer")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Offer declined; the seat moves to the next person in line",
		Data:    nil,
	})
}

func (wc *WaitlistController) offerError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, waitlist.ErrOfferNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Message: "Offer not found",
			Data:    nil,
		})
	case errors.Is(err, waitlist.ErrOfferExpired):
		return c.Status(fiber.StatusGone).JSON(types.ApiResponse{
			Status:  fiber.StatusGone,
			Message: "Offer has expired",
			Data:    nil,
		})
	}
	logger.Error(fallback, err)
	return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
		Status:  fiber.StatusInternalServerError,
		Message: fallback,
		Data:    nil,
	})
}
