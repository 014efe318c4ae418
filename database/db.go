package database

import (
	"fmt"
	"os"

	"classflow/logger"
	"classflow/models/booking"
	"classflow/models/class"
	"classflow/models/coupon"
	"classflow/models/credit"
	"classflow/models/location"
	"classflow/models/log"
	"classflow/models/resource"
	"classflow/models/schedule"
	"classflow/models/user"
	"classflow/models/waitlist"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitDB initializes the database connection with auto migration and indexing
func InitDB() (*gorm.DB, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", err)
	}

	// Get database configuration from environment variables
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_DATABASE")
	user := os.Getenv("DB_USERNAME")
	password := os.Getenv("DB_PASSWORD")
	sslmode := os.Getenv("DB_SSLMODE") // Optional: "disable", "require", etc.

	// Set default sslmode if not provided
	if sslmode == "" {
		sslmode = "disable"
	}

	// Build PostgreSQL DSN string
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, database, sslmode)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to connect to the database", err)
		return nil, err
	}
	logger.Success("Successfully connected to the database")

	if err := autoMigrate(); err != nil {
		logger.Error("Failed to run migrations", err)
		return nil, err
	}
	logger.Success("All migrations completed successfully")

	// Handle foreign key constraints after migrations
	if err := createForeignKeyConstraints(); err != nil {
		logger.Error("Failed to create foreign key constraints", err)
		return nil, err
	}
	logger.Success("All foreign key constraints created successfully")

	// Create indexes for better performance
	if err := createIndexes(); err != nil {
		logger.Error("Failed to create indexes", err)
		return nil, err
	}
	logger.Success("All indexes created successfully")

	return DB, nil
}

// autoMigrate runs auto migration for all models
func autoMigrate() error {
	// First, migrate models without foreign key constraints in stages

	// Stage 1: Core foundation models
	stage1Models := []interface{}{
		&user.User{},
		&location.Location{},
		&class.Class{},
		&resource.Resource{},
		&coupon.Coupon{},
	}

	for _, model := range stage1Models {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 2: Models with dependencies on Stage 1
	stage2Models := []interface{}{
		&schedule.Schedule{},
		&credit.CreditBalance{},
	}

	for _, model := range stage2Models {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 3: Models with dependencies on Stage 2
	stage3Models := []interface{}{
		&booking.Booking{},
		&booking.BookingStatusEvent{},
		&waitlist.Entry{},
	}

	for _, model := range stage3Models {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Remaining models
	remainingModels := []interface{}{
		// Logging
		&log.Log{},
	}

	for _, model := range remainingModels {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	return nil
}

// createIndexes creates additional indexes for better performance
func createIndexes() error {
	// Schedule indexes: conflict checks scan by instructor/resource over a
	// time window, public listing filters by class/location and start time.
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_schedules_instructor_window ON schedules(instructor_id, start_at, end_at)").Error; err != nil {
		return fmt.Errorf("failed to create schedule instructor window index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_schedules_resource_window ON schedules(resource_id, start_at, end_at)").Error; err != nil {
		return fmt.Errorf("failed to create schedule resource window index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_schedules_class_start ON schedules(class_id, start_at)").Error; err != nil {
		return fmt.Errorf("failed to create schedule class_id index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_schedules_status ON schedules(status)").Error; err != nil {
		return fmt.Errorf("failed to create schedule status index: %w", err)
	}

	// Booking indexes: the capacity count runs on every reserve.
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_schedule_status ON bookings(schedule_id, status)").Error; err != nil {
		return fmt.Errorf("failed to create booking schedule_status index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)").Error; err != nil {
		return fmt.Errorf("failed to create booking user_id index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_payment_session ON bookings(payment_session_id)").Error; err != nil {
		return fmt.Errorf("failed to create booking payment_session index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_created_at ON bookings(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create booking created_at index: %w", err)
	}

	// Waitlist indexes: FIFO pop per schedule, expiry sweep by deadline.
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_waitlist_schedule_status_created ON waitlist_entries(schedule_id, status, created_at)").Error; err != nil {
		return fmt.Errorf("failed to create waitlist schedule_status index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_waitlist_offer_expires ON waitlist_entries(status, offer_expires_at)").Error; err != nil {
		return fmt.Errorf("failed to create waitlist offer_expires index: %w", err)
	}

	// Credit indexes: consumption picks the soonest-expiring usable row.
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_credit_balances_user_expires ON credit_balances(user_id, expires_at)").Error; err != nil {
		return fmt.Errorf("failed to create credit user_expires index: %w", err)
	}

	// Log indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_logs_status_code ON logs(status_code)").Error; err != nil {
		return fmt.Errorf("failed to create log status_code index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create log created_at index: %w", err)
	}

	return nil
}

// createForeignKeyConstraints creates foreign key constraints after auto migration
func createForeignKeyConstraints() error {
	// Define constraints with their names for checking existence
	constraints := []struct {
		name string
		sql  string
	}{
		{
			name: "fk_schedules_class",
			sql: `ALTER TABLE schedules ADD CONSTRAINT fk_schedules_class
				  FOREIGN KEY (class_id) REFERENCES classes(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_bookings_schedule",
			sql: `ALTER TABLE bookings ADD CONSTRAINT fk_bookings_schedule
				  FOREIGN KEY (schedule_id) REFERENCES schedules(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_waitlist_entries_schedule",
			sql: `ALTER TABLE waitlist_entries ADD CONSTRAINT fk_waitlist_entries_schedule
				  FOREIGN KEY (schedule_id) REFERENCES schedules(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_credit_balances_user",
			sql: `ALTER TABLE credit_balances ADD CONSTRAINT fk_credit_balances_user
				  FOREIGN KEY (user_id) REFERENCES users(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
	}

	for _, constraint := range constraints {
		// Check if constraint already exists
		var exists bool
		checkSQL := `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE constraint_name = $1
			)
		`

		err := DB.Raw(checkSQL, constraint.name).Scan(&exists).Error
		if err != nil {
			logger.Warning(fmt.Sprintf("Failed to check constraint existence: %s - Error: %v", constraint.name, err))
			continue
		}

		if !exists {
			if err := DB.Exec(constraint.sql).Error; err != nil {
				logger.Warning(fmt.Sprintf("Failed to create constraint: %s - Error: %v", constraint.name, err))
			} else {
				logger.Success(fmt.Sprintf("Successfully created constraint: %s", constraint.name))
			}
		} else {
			logger.Debug(fmt.Sprintf("Constraint already exists: %s", constraint.name))
		}
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
