package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiko9987/itglobal/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Amount builds a present decimal from a literal such as "1500000".
func Amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// Date parses a YYYY-MM-DD literal into a UTC date pointer.
func Date(s string) *time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &d
}

// NewProject returns an unsaved project in region with every default
// required field filled and a unique code.
func NewProject(region, owner string) *models.Project {
	n := nextID()
	return &models.Project{
		Code:            fmt.Sprintf("%s-%03d", region, n),
		Region:          region,
		Owner:           owner,
		Company:         fmt.Sprintf("Company %d", n),
		Client:          fmt.Sprintf("Client %d", n),
		SiteAddress:     fmt.Sprintf("%d Test-ro, Seoul", n),
		WorkDescription: "Ceiling cassette installation",
		Brand:           "Samsung",
		Status:          models.StatusPending,
	}
}

// CreateTestProject stores a complete project for owner in region.
func CreateTestProject(t *testing.T, db *gorm.DB, region, owner string) *models.Project {
	t.Helper()
	return CreateTestProjectWith(t, db, NewProject(region, owner))
}

// CreateTestProjectWith stores p as given.
func CreateTestProjectWith(t *testing.T, db *gorm.DB, p *models.Project) *models.Project {
	t.Helper()

	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return p
}

// SeedTestCounters creates region counters with the given starting values.
func SeedTestCounters(t *testing.T, db *gorm.DB, values map[string]int64) {
	t.Helper()

	for region, v := range values {
		if err := db.Create(&models.RegionCounter{Region: region, Value: v}).Error; err != nil {
			t.Fatalf("failed to seed counter %s: %v", region, err)
		}
	}
}
