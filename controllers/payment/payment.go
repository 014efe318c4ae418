package payment

import (
	"errors"

	"classflow/logger"
	"classflow/services/ledger"
	"classflow/types"
	"classflow/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PaymentController handles payment gateway webhooks
type PaymentController struct {
	DB     *gorm.DB
	Ledger *ledger.Service
	Logger *logger.AsyncLogger
}

// NewPaymentController creates a new payment controller
func NewPaymentController(db *gorm.DB, ledgerSvc *ledger.Service, asyncLogger *logger.AsyncLogger) *PaymentController {
	return &PaymentController{
		DB:     db,
		Ledger: ledgerSvc,
		Logger: asyncLogger,
	}
}

// CallbackRequest is the gateway's asynchronous notification payload.
type CallbackRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=succeeded failed"`
}

// Callback settles a pending booking from the gateway's notification. The
// handler is idempotent: replays of an already-settled session return 200
// without touching the booking again.
func (pc *PaymentController) Callback(c *fiber.Ctx) error {
	var req CallbackRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse payment callback", err)
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

	if err := pc.Ledger.HandlePaymentCallback(req.SessionID, req.Status == "succeeded"); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			// Unknown sessions get a 200 so the gateway stops retrying;
			// the mismatch is logged for investigation.
			logger.Warning("Payment callback for unknown session: " + req.SessionID)
			return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
				Status:  fiber.StatusOK,
				Message: "Session not tracked",
				Data:    nil,
			})
		}
		logger.Error("Failed to process payment callback", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to process payment callback",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Payment callback processed",
		Data:    nil,
	})
}
