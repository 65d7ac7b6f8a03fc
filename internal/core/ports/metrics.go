package ports

import (
	"time"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
)

// Metrics receives validation and write outcomes. Outcome is "ok", a
// domain.Rule value, or "storage_error".
type Metrics interface {
	ObserveValidation(kind domain.Kind, mode domain.Mode, outcome string)
	ObserveWrite(kind domain.Kind, action domain.ChangeAction, outcome string, elapsed time.Duration)
}
