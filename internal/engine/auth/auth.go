package auth

import (
	"context"
	"database/sql"
	"fmt"

	"logicforge/internal/domain"
	"logicforge/internal/repo"
)

// ForbiddenError indicates the caller does not own the resource.
type ForbiddenError struct {
	Resource string
	ID       string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("access to %s %s denied", e.Resource, e.ID)
}

// Service checks ownership of program-scoped resources.
type Service struct {
	Repo repo.Repo
}

// RequireProgramOwner loads the program and fails with ForbiddenError when
// userID is not its owner. A missing program yields repo.ErrNotFound.
func (s Service) RequireProgramOwner(ctx context.Context, tx *sql.Tx, programID, userID string) (domain.Program, error) {
	p, err := s.Repo.GetProgram(ctx, tx, programID)
	if err != nil {
		return domain.Program{}, err
	}
	if userID == "" || p.UserID != userID {
		return domain.Program{}, ForbiddenError{Resource: "program", ID: programID}
	}
	return p, nil
}
