// Package directory reads the external user/doctor directory. The token
// subsystem consults it for exactly two facts per protected request: has an
// administrator force-logged the subject out, and is the account still
// active. The directory itself (profiles, credentials, CRUD) belongs to
// another service.
package directory

import (
	"context"
	"errors"

	"github.com/medisched/tokend/internal/token/domain"
)

var (
	// ErrNotFound means the subject no longer exists in the directory.
	ErrNotFound = errors.New("directory: subject not found")
	// ErrUnavailable means the lookup could not be completed. Callers must
	// fail closed: a request whose trust checks cannot run is not admitted.
	ErrUnavailable = errors.New("directory: unavailable")
)

// Directory is the read-only collaborator contract: one lookup per protected
// request.
type Directory interface {
	Lookup(ctx context.Context, subjectID string) (domain.DirectoryEntry, error)
}
