package schedule

import (
	"errors"
	"fmt"
	"strconv"

	"classflow/logger"
	"classflow/services/generator"
	"classflow/services/ledger"
	"classflow/services/waitlist"
	"classflow/types"
	scheduleTypes "classflow/types/schedule"
	"classflow/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ScheduleController handles schedule-related HTTP requests
type ScheduleController struct {
	DB        *gorm.DB
	Generator *generator.Service
	Ledger    *ledger.Service
	Waitlist  *waitlist.Coordinator
	Logger    *logger.AsyncLogger
}

// NewScheduleController creates a new schedule controller
func NewScheduleController(db *gorm.DB, gen *generator.Service, ledgerSvc *ledger.Service, coordinator *waitlist.Coordinator, asyncLogger *logger.AsyncLogger) *ScheduleController {
	return &ScheduleController{
		DB:        db,
		Generator: gen,
		Ledger:    ledgerSvc,
		Waitlist:  coordinator,
		Logger:    asyncLogger,
	}
}

// List returns upcoming bookable schedules with public filters
func (sc *ScheduleController) List(c *fiber.Ctx) error {
	var q scheduleTypes.ListQuery
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid query parameters",
			Data:    nil,
		})
	}

	schedules, err := sc.Generator.List(q)
	if err != nil {
		if errors.Is(err, generator.ErrValidation) {
			return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
				Status:  fiber.StatusBadRequest,
				Message: err.Error(),
				Data:    nil,
			})
		}
		logger.Error("Failed to list schedules", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Failed to list schedules",
			Data:    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Schedules retrieved successfully",
		Data:    schedules,
	})
}

// Create adds a single schedule occurrence
func (sc *ScheduleController) Create(c *fiber.Ctx) error {
	var req scheduleTypes.CreateRequest
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

	sched, err := sc.Generator.CreateSingle(req, utils.ActorLabel(userInfo))
	if err != nil {
		return sc.generatorError(c, err, "Failed to create schedule")
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: "Schedule created successfully",
		Data:    sched,
	})
}

// BulkCreate expands a recurrence pattern into schedule rows. Conflicting
// dates are skipped and reported, never abort the batch.
func (sc *ScheduleController) BulkCreate(c *fiber.Ctx) error {
	var req scheduleTypes.BulkCreateRequest
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

	result, err := sc.Generator.Generate(req, utils.ActorLabel(userInfo))
	if err != nil {
		return sc.generatorError(c, err, "Failed to generate schedules")
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Status:  fiber.StatusCreated,
		Message: fmt.Sprintf("Created %d schedules, skipped %d", len(result.Created), len(result.Skipped)),
		Data:    result,
	})
}

// Update modifies a schedule occurrence with conflict checking
func (sc *ScheduleController) Update(c *fiber.Ctx) error {
	scheduleID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid schedule id",
			Data:    nil,
		})
	}

	var req scheduleTypes.UpdateRequest
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

	sched, err := sc.Generator.Update(uint(scheduleID), req, utils.ActorLabel(userInfo))
	if err != nil {
		return sc.generatorError(c, err, "Failed to update schedule")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Schedule updated successfully",
		Data:    sched,
	})
}

// Delete removes a schedule with no seat-holding bookings
func (sc *ScheduleController) Delete(c *fiber.Ctx) error {
	scheduleID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid schedule id",
			Data:    nil,
		})
	}

	if err := sc.Generator.Delete(uint(scheduleID)); err != nil {
		if errors.Is(err, generator.ErrHasBookings) {
			return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
				Status:  fiber.StatusConflict,
				Message: "Schedule has active bookings; cancel it instead",
				Data:    nil,
			})
		}
		return sc.generatorError(c, err, "Failed to delete schedule")
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: "Schedule deleted successfully",
		Data:    nil,
	})
}

// CancelSchedule cancels the occurrence, releases every seat-holding
// booking with full restitution, and closes the waitlist queue. No offer
// cascade fires: the slot is gone, not freed.
func (sc *ScheduleController) CancelSchedule(c *fiber.Ctx) error {
	scheduleID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: "Invalid schedule id",
			Data:    nil,
		})
	}

	var req struct {
		Note   string `json:"note"`
		Notify bool   `json:"notify"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
				Status:  fiber.StatusBadRequest,
				Message: "Invalid request body",
				Data:    nil,
			})
		}
	}

	userInfo, err := utils.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
			Status:  fiber.StatusUnauthorized,
			Message: "User not found",
			Data:    nil,
		})
	}
	actor := utils.ActorLabel(userInfo)

	sched, err := sc.Generator.CancelSchedule(uint(scheduleID), actor)
	if err != nil {
		return sc.generatorError(c, err, "Failed to cancel schedule")
	}

	canceled, err := sc.Ledger.CancelAllForSchedule(uint(scheduleID), req.Note, req.Notify, actor)
	if err != nil {
		logger.Error("Failed to cancel bookings for schedule", err)
		return c.Status(fiber.StatusInternalServerError).JSON(types.ApiResponse{
			Status:  fiber.StatusInternalServerError,
			Message: "Schedule cancelled but booking cleanup failed",
			Data:    fiber.Map{"schedule": sched},
		})
	}

	flushed, err := sc.Waitlist.FlushSchedule(uint(scheduleID))
	if err != nil {
		logger.Error("Failed to flush waitlist for cancelled schedule", err)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Status:  fiber.StatusOK,
		Message: fmt.Sprintf("Schedule cancelled, %d bookings released", canceled),
		Data: fiber.Map{
			"schedule":          sched,
			"bookings_released": canceled,
			"waitlist_closed":   flushed,
		},
	})
}

func (sc *ScheduleController) generatorError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, generator.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(types.ApiResponse{
			Status:  fiber.StatusBadRequest,
			Message: err.Error(),
			Data:    nil,
		})
	case errors.Is(err, generator.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(types.ApiResponse{
			Status:  fiber.StatusConflict,
			Message: err.Error(),
			Data:    nil,
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(types.ApiResponse{
			Status:  fiber.StatusNotFound,
			Message: "Schedule not found",
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
