package docstore

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/supportchat/internal/domain"
)

var validate = validator.New()

// ValidateRecord checks a record before it is written.
func ValidateRecord(rec domain.Record) error {
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	return nil
}
