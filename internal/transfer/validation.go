package transfer

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateInput describes a transfer request. Stock sufficiency is checked at
// commit time of each later step, not here.
type CreateInput struct {
	ProductID      int64 `validate:"required,gt=0"`
	FromLocationID int64 `validate:"required,gt=0"`
	ToLocationID   int64 `validate:"required,gt=0,nefield=FromLocationID"`
	Quantity       int64 `validate:"required,gt=0"`
	Note           string
	ActorID        int64
}

func validateCreate(input CreateInput) error {
	if input.FromLocationID != 0 && input.FromLocationID == input.ToLocationID {
		return ErrSameLocation
	}
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return nil
}
