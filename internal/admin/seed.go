// Package admin seeds administrator accounts from the command line.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Registrar is satisfied by services.UserService.
type Registrar interface {
	Register(ctx context.Context, email, password, role string) (*models.User, error)
}

// Seed registers email as an admin. An already registered email is not an
// error: created is false and the existing account is left untouched.
func Seed(ctx context.Context, r Registrar, email, password string) (u *models.User, created bool, err error) {
	u, err = r.Register(ctx, email, password, models.RoleAdmin.String())
	switch {
	case err == nil:
		return u, true, nil
	case errors.Is(err, common.ErrDuplicateEmail):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("create admin %s: %w", email, err)
	}
}
