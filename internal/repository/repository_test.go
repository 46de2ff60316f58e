package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shinyyama/ecograd-backend/internal/db"
	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "x"}
	require.NoError(t, NewUserRepository(gdb).Create(context.Background(), u))
	return u
}

func seedPost(t *testing.T, gdb *gorm.DB, ownerID uint64, title string, price float64, mutate ...func(*model.Post)) *model.Post {
	t.Helper()
	p := &model.Post{
		UserID:          ownerID,
		Title:           title,
		ItemType:        "Gown",
		Size:            "M",
		ConditionStatus: "New",
		Price:           price,
		ContactInfo:     "dm me",
		Status:          model.PostStatusActive,
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, NewPostRepository(gdb).Create(context.Background(), p))
	return p
}
