package routes

import (
	"os"

	bookingController "classflow/controllers/booking"
	paymentController "classflow/controllers/payment"
	scheduleController "classflow/controllers/schedule"
	waitlistController "classflow/controllers/waitlist"
	"classflow/httpServices/calendar"
	"classflow/httpServices/notify"
	"classflow/httpServices/payment"
	"classflow/logger"
	"classflow/middleware"
	"classflow/services/credit"
	"classflow/services/generator"
	"classflow/services/ledger"
	"classflow/services/policy"
	"classflow/services/waitlist"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Services bundles the wired domain services so main can run the
// background sweeps against the same instances the handlers use.
type Services struct {
	Ledger    *ledger.Service
	Waitlist  *waitlist.Coordinator
	Generator *generator.Service
}

func SetupRoutes(app *fiber.App, db *gorm.DB) *Services {
	paymentClient := payment.NewClient(os.Getenv("PAYMENT_BASE_URL"))
	notifyClient := notify.NewClient(os.Getenv("NOTIFY_BASE_URL"))
	calendarClient := calendar.NewClient(os.Getenv("CALENDAR_BASE_URL"))

	creditStore := credit.NewStore(db)
	ledgerService := ledger.NewService(db, creditStore, paymentClient, notifyClient, policy.ConfigFromEnv())
	waitlistCoordinator := waitlist.NewCoordinator(db, ledgerService, notifyClient)
	ledgerService.SetSeatFreedNotifier(waitlistCoordinator)
	generatorService := generator.NewService(db, calendarClient)

	asyncLogger := logger.NewAsyncLogger(db)
	bookingCtrl := bookingController.NewBookingController(db, ledgerService, asyncLogger)
	scheduleCtrl := scheduleController.NewScheduleController(db, generatorService, ledgerService, waitlistCoordinator, asyncLogger)
	waitlistCtrl := waitlistController.NewWaitlistController(db, waitlistCoordinator, asyncLogger)
	paymentCtrl := paymentController.NewPaymentController(db, ledgerService, asyncLogger)

	// Start the async logger processing goroutine
	go asyncLogger.ProcessLog()

	app.Use(middleware.RequestLogger(asyncLogger))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "classflow", "status": "ok"})
	})

	/*=============================================================================
	| Public Routes
	===============================================================================*/
	api := app.Group("/api")
	api.Get("/schedules", scheduleCtrl.List)

	// Waitlist offer links arrive by email; the token is the credential.
	api.Post("/waitlist/join", waitlistCtrl.Join)
	api.Get("/waitlist/accept", waitlistCtrl.Accept)
	api.Get("/waitlist/deny", waitlistCtrl.Deny)

	// Gateway webhook
	api.Post("/payments/callback", paymentCtrl.Callback)

	/*=============================================================================
	| Customer Routes
	===============================================================================*/
	bookings := api.Group("/bookings").Use(middleware.RequireAuthentication())
	bookings.Post("/", bookingCtrl.Book)
	bookings.Post("/:id/cancel", bookingCtrl.Cancel)
	bookings.Post("/:id/reschedule", bookingCtrl.Reschedule)

	/*=============================================================================
	| Staff Routes
	===============================================================================*/
	admin := api.Group("/admin").Use(middleware.RequireStaff())

	admin.Post("/schedules", scheduleCtrl.Create)
	admin.Post("/schedules/bulk", scheduleCtrl.BulkCreate)
	admin.Put("/schedules/:id", scheduleCtrl.Update)
	admin.Delete("/schedules/:id", scheduleCtrl.Delete)
	admin.Post("/schedules/:id/cancel", scheduleCtrl.CancelSchedule)

	admin.Post("/bookings/:id/admin-cancel", bookingCtrl.AdminCancel)
	admin.Post("/bookings/:id/attendance", bookingCtrl.MarkAttendance)

	return &Services{
		Ledger:    ledgerService,
		Waitlist:  waitlistCoordinator,
		Generator: generatorService,
	}
}
