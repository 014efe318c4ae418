package main

import (
	"fmt"
	"os"
	"time"

	"classflow/database"
	"classflow/logger"
	"classflow/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
)

func main() {
	app := fiber.New(fiber.Config{
		ReadBufferSize:  32768, // 32KB read buffer
		WriteBufferSize: 32768, // 32KB write buffer
		ReadTimeout:     time.Second * 30,
		WriteTimeout:    time.Second * 30,
		BodyLimit:       50 * 1024 * 1024, // 50MB body limit
	})
	env := godotenv.Load()
	if env != nil {
		logger.Error("Error loading .env file", env)
		fmt.Println("Error loading .env file", env)
	}
	logger.Success("Server is running on ip: " + os.Getenv("APP_HOST") + " port: " + os.Getenv("APP_PORT") +
		"\n\t\t\t\t\t\t******************************************************************************************\n")

	db, err := database.InitDB()
	if err != nil {
		logger.Error("Failed to connect to the database", err)
		return
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     os.Getenv("FRONTEND_URL"),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	services := routes.SetupRoutes(app, db)

	// Expired waitlist offers cascade to the next person in line even when
	// nobody clicks the decline link.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := services.Waitlist.ExpireSweep(); err != nil {
				logger.Error("Waitlist expiry sweep failed", err)
			} else if n > 0 {
				logger.Info(fmt.Sprintf("Waitlist expiry sweep released %d offers", n))
			}
		}
	}()

	// Confirmed bookings on finished schedules roll over to completed.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := services.Ledger.CompleteSweep(time.Now().UTC()); err != nil {
				logger.Error("Completion sweep failed", err)
			} else if n > 0 {
				logger.Info(fmt.Sprintf("Completion sweep closed %d bookings", n))
			}
		}
	}()

	app_host := os.Getenv("APP_HOST")
	app_port := os.Getenv("APP_PORT")
	app.Listen(app_host + ":" + app_port)
}
