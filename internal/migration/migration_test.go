package migration

import (
	"io/fs"
	"testing"

	"github.com/glebarez/sqlite"
	bookingdomain "github.com/smallbiznis/railbook/internal/booking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(embeddedMigrations, migrationsDir+"/*.down.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, ups)
	assert.Equal(t, len(ups), len(downs))
}

func TestRunAutoMigratesNonPostgres(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migration_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Run(db))
	assert.True(t, db.Migrator().HasTable(&bookingdomain.Record{}))
	assert.True(t, db.Migrator().HasColumn(&bookingdomain.Record{}, "payment_link_id"))
}

func TestRunRejectsNilHandle(t *testing.T) {
	assert.Error(t, Run(nil))
	assert.Error(t, RunMigrations(nil))
}
