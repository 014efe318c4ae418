package seeders

import (
	"log"

	classModel "classflow/models/class"

	"gorm.io/gorm"
)

// SeedClasses inserts a starter set of class templates if they are missing.
func SeedClasses(db *gorm.DB) {
	log.Printf("🔍 Checking class template data integrity...")

	classes := []classModel.Class{
		{Name: "Vinyasa Flow", Description: "All-levels flow class", DurationMinutes: 60, DefaultCapacity: 20, DefaultPrice: 1800, Currency: "USD", IsActive: true},
		{Name: "Reformer Pilates", Description: "Equipment-based small group", DurationMinutes: 50, DefaultCapacity: 8, DefaultPrice: 3500, Currency: "USD", RequiresIntake: true, IsActive: true},
		{Name: "Community Meditation", Description: "Free weekly sit", DurationMinutes: 30, DefaultCapacity: 40, DefaultPrice: 0, Currency: "USD", IsActive: true},
	}

	for _, cls := range classes {
		var existing classModel.Class
		err := db.Where("name = ?", cls.Name).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&cls).Error; err != nil {
				log.Printf("❌ Failed to seed class %s: %v", cls.Name, err)
			} else {
				log.Printf("✅ Seeded class: %s", cls.Name)
			}
		} else if err != nil {
			log.Printf("❌ Failed to check class %s: %v", cls.Name, err)
		}
	}
}
