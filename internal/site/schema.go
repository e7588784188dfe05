package site

import (
	"context"
	"fmt"

	"github.com/mahara/pieform/pkg/record"
	"github.com/mahara/pieform/pkg/session"
)

// Table names, before the store prefix is applied.
const (
	TableUsers  = "usr"
	TableConfig = "config"
)

// ConfigSiteClosed is the config field set to "1" while the site is closed.
const ConfigSiteClosed = "siteclosed"

// Migrate creates the tables the demo site uses.
func Migrate(ctx context.Context, store *record.Store) error {
	users, err := store.Table(TableUsers)
	if err != nil {
		return err
	}
	config, err := store.Table(TableConfig)
	if err != nil {
		return err
	}
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"username" TEXT NOT NULL UNIQUE,
	"firstname" TEXT NOT NULL DEFAULT '',
	"lastname" TEXT NOT NULL DEFAULT '',
	"email" TEXT NOT NULL DEFAULT '',
	"admin" INTEGER NOT NULL DEFAULT 0
)`, users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	"field" TEXT PRIMARY KEY,
	"value" TEXT
)`, config),
	}
	return store.WithTx(ctx, func(ctx context.Context, tx *record.Store) error {
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("site: migrate: %w", err)
			}
		}
		return nil
	})
}

// Seed inserts the users whose usernames are not present yet and returns
// how many were added.
func Seed(ctx context.Context, store *record.Store, users ...session.User) (int, error) {
	added := 0
	err := store.WithTx(ctx, func(ctx context.Context, tx *record.Store) error {
		for _, user := range users {
			exists, err := tx.Exists(ctx, TableUsers, record.Where("username", user.Username))
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			admin := 0
			if user.Admin {
				admin = 1
			}
			if _, err := tx.InsertID(ctx, TableUsers, record.Record{
				"username":  user.Username,
				"firstname": user.FirstName,
				"lastname":  user.LastName,
				"email":     user.Email,
				"admin":     admin,
			}, "id"); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("site: seed: %w", err)
	}
	return added, nil
}

// Closed reports whether an administrator closed the site.
func Closed(ctx context.Context, store *record.Store) (bool, error) {
	value, found, err := store.Field(ctx, TableConfig, "value", record.Where("field", ConfigSiteClosed))
	if err != nil || !found {
		return false, err
	}
	return record.Record{"value": value}.Bool("value"), nil
}

// SetClosed opens or closes the site.
func SetClosed(ctx context.Context, store *record.Store, closed bool) error {
	value := "0"
	if closed {
		value = "1"
	}
	return store.WithTx(ctx, func(ctx context.Context, tx *record.Store) error {
		where := record.Where("field", ConfigSiteClosed)
		exists, err := tx.Exists(ctx, TableConfig, where)
		if err != nil {
			return err
		}
		if exists {
			_, err = tx.SetField(ctx, TableConfig, "value", value, where)
			return err
		}
		return tx.Insert(ctx, TableConfig, record.Record{"field": ConfigSiteClosed, "value": value})
	})
}

func userFromRecord(rec record.Record) session.User {
	return session.User{
		ID:        rec.Int("id"),
		Username:  rec.String("username"),
		FirstName: rec.String("firstname"),
		LastName:  rec.String("lastname"),
		Email:     rec.String("email"),
		Admin:     rec.Bool("admin"),
	}
}
