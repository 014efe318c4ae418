package seeders

import (
	"log"

	locationModel "classflow/models/location"

	"gorm.io/gorm"
)

// SeedLocations inserts the default studio sites if they are missing. Each
// location carries the IANA zone all of its schedules resolve against.
func SeedLocations(db *gorm.DB) {
	log.Printf("🔍 Checking studio locations data integrity...")

	locations := []locationModel.Location{
		{Name: "Downtown Studio", Address: "12 Main St", Timezone: "America/New_York", IsActive: true},
		{Name: "Westside Loft", Address: "400 Ocean Ave", Timezone: "America/Los_Angeles", IsActive: true},
		{Name: "Online", Address: "", Timezone: "UTC", IsActive: true},
	}

	for _, loc := range locations {
		var existing locationModel.Location
		err := db.Where("name = ?", loc.Name).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&loc).Error; err != nil {
				log.Printf("❌ Failed to seed location %s: %v", loc.Name, err)
			} else {
				log.Printf("✅ Seeded location: %s (%s)", loc.Name, loc.Timezone)
			}
		} else if err != nil {
			log.Printf("❌ Failed to check location %s: %v", loc.Name, err)
		}
	}
}
