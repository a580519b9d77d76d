package testutil_test

import (
	"testing"

	"github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)

	var count int64
	for _, table := range []string{"projects", "region_counters", "notification_states", "delivery_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDBIsolated(t *testing.T) {
	t.Run("first", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.CreateTestProject(t, db, "A", "kim")
	})
	t.Run("second", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		var count int64
		db.Model(&models.Project{}).Count(&count)
		if count != 0 {
			t.Errorf("expected an empty database, found %d projects", count)
		}
	})
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)

	p := testutil.CreateTestProject(t, db, "B", "lee")
	if p.Region != "B" || p.Owner != "lee" {
		t.Errorf("unexpected project %+v", p)
	}

	var stored models.Project
	if err := db.First(&stored, "code = ?", p.Code).Error; err != nil {
		t.Fatalf("project should be stored: %v", err)
	}

	testutil.SeedTestCounters(t, db, map[string]int64{"A": 4})
	var rc models.RegionCounter
	if err := db.First(&rc, "region = ?", "A").Error; err != nil || rc.Value != 4 {
		t.Errorf("expected counter A=4, got %+v (%v)", rc, err)
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrProjectNotFound, "custom message")
	testutil.AssertAppError(t, err, "PROJECT_NOT_FOUND")
}

func TestAssertFieldErrors(t *testing.T) {
	err := errors.Validation(
		errors.FieldError{Field: "owner", Reason: "required"},
		errors.FieldError{Field: "client", Reason: "required"},
	)
	testutil.AssertFieldErrors(t, err, "owner", "client")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
