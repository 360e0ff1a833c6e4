package authcore

import (
	"github.com/goliatone/go-persistence-bun"
)

// RegisterModels registers every model this package owns with the
// persistence layer so migrations and fixtures can see them. Call once
// during application bootstrap, before persistence.New.
func RegisterModels() {
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*Session)(nil))
	persistence.RegisterModel((*AuditEntry)(nil))
	persistence.RegisterModel((*AdminSettings)(nil))
}
