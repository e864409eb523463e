// Package storetest opens throwaway SQLite databases migrated with every model, for
// use in tests.
package storetest

import (
	"fmt"
	"testing"

	"github.com/farellandr/duesledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory database private to t. A single connection is
// shared so concurrent callers serialize the way row locks would serialize them.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type Fixture struct {
	Organization models.Organization
	Admin        models.User
	MemberUser   models.User
	Member       models.Member
	Payment      models.Payment
}

// Seed creates an organization with an admin, a suspended member owing 100.00 and a
// pending 100.00 payment for that member.
func Seed(t testing.TB, db *gorm.DB) *Fixture {
	t.Helper()

	var f Fixture
	adminRole := models.Role{Name: models.RoleAdmin}
	memberRole := models.Role{Name: models.RoleMember}
	mustCreate(t, db, &adminRole)
	mustCreate(t, db, &memberRole)

	f.Organization = models.Organization{Name: "Freetown Savings Club", Currency: "SLE"}
	mustCreate(t, db, &f.Organization)

	f.Admin = models.User{Email: "admin@example.com", FullName: "Ada Admin", OrganizationID: f.Organization.ID, RoleID: adminRole.ID}
	mustCreate(t, db, &f.Admin)
	f.Admin.Role = adminRole

	f.MemberUser = models.User{Email: "member@example.com", FullName: "Sam Member", OrganizationID: f.Organization.ID, RoleID: memberRole.ID}
	mustCreate(t, db, &f.MemberUser)
	f.MemberUser.Role = memberRole

	f.Member = models.Member{
		OrganizationID: f.Organization.ID,
		UserID:         &f.MemberUser.ID,
		FullName:       "Sam Member",
		Email:          "member@example.com",
		Status:         models.MemberStatusSuspended,
		TotalDue:       decimal.NewFromInt(100),
	}
	mustCreate(t, db, &f.Member)

	f.Payment = NewPayment(t, db, &f, decimal.NewFromInt(100))
	return &f
}

// NewPayment adds another pending payment for the fixture's member.
func NewPayment(t testing.TB, db *gorm.DB, f *Fixture, amount decimal.Decimal) models.Payment {
	t.Helper()

	payment := models.Payment{
		OrganizationID: f.Organization.ID,
		MemberID:       f.Member.ID,
		Amount:         amount,
		Currency:       "SLE",
	}
	mustCreate(t, db, &payment)
	return payment
}

func mustCreate(t testing.TB, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}
