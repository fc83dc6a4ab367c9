package main

import (
	"context"
	"fmt"

	"github.com/soundprint-app/soundprint/internal/models"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/shared"
	"github.com/urfave/cli/v3"
)

// UserAdd creates an account.
func (r *Runner) UserAdd(ctx context.Context, cmd *cli.Command) error {
	username := cmd.StringArg("username")
	if username == "" {
		return fmt.Errorf("username argument is required: %w", shared.ErrInvalidInput)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	user := &models.User{Username: username}
	if err := repositories.NewUserRepository(db).Create(user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Info("user created", "username", username, "id", user.ID)
	return r.writePlain("✓ Account %s created\n", username)
}

// UserList lists every account and whether it has a linked streaming
// account.
func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	users := repositories.NewUserRepository(db)
	all, err := users.List()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return r.writePlain("No accounts yet. Create one with: soundprint users add <username>\n")
	}

	connected, err := users.ListConnected()
	if err != nil {
		return err
	}
	linked := make(map[string]bool, len(connected))
	for _, user := range connected {
		linked[user.ID] = true
	}

	for _, user := range all {
		marker := "✗"
		if linked[user.ID] {
			marker = "✓"
		}
		if err := r.writePlain("%s %s (joined %s)\n", marker, user.Username, user.CreatedAt.Format("2006-01-02")); err != nil {
			return err
		}
	}
	return nil
}

// UserDelete removes an account. Its playback history goes with it.
func (r *Runner) UserDelete(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	users := repositories.NewUserRepository(db)
	userID, err := r.resolveUser(users, cmd.StringArg("username"))
	if err != nil {
		return err
	}

	if err := users.Delete(userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	r.logger.Info("user deleted", "username", cmd.StringArg("username"))
	return r.writePlain("✓ Account deleted\n")
}
