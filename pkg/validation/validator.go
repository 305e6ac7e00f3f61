package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-topology/pkg/topology"
	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// MaxRouteNameLength bounds route names
	MaxRouteNameLength = 255
)

func init() {
	validate = validator.New()
}

// ValidateRouteCreate validates a route creation request
func ValidateRouteCreate(req *topology.RouteCreate) error {
	if req == nil {
		return fmt.Errorf("%w: route request cannot be nil", topology.ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return validateRouteName(req.Name)
}

// ValidateRouteUpdate validates a route update body. Legacy surface types
// are accepted so that they round-trip unchanged.
func ValidateRouteUpdate(req *topology.RouteUpdate) error {
	if req == nil {
		return fmt.Errorf("%w: route update cannot be nil", topology.ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return validateRouteName(req.Name)
}

// ValidateLinkUpdate validates the editable subset of a link
func ValidateLinkUpdate(req *topology.LinkUpdate) error {
	if req == nil {
		return fmt.Errorf("%w: link update cannot be nil", topology.ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateLinkCreate validates a link creation request. Each side must
// reference exactly one node or device.
func ValidateLinkCreate(req *topology.LinkCreate) error {
	if req == nil {
		return fmt.Errorf("%w: link request cannot be nil", topology.ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	from, to := req.Endpoints()
	fromRef, err := from.Ref()
	if err != nil {
		return fmt.Errorf("%w: From: %w", topology.ErrValidation, err)
	}
	toRef, err := to.Ref()
	if err != nil {
		return fmt.Errorf("%w: To: %w", topology.ErrValidation, err)
	}
	if fromRef == toRef {
		return fmt.Errorf("%w: To: link cannot connect %s to itself", topology.ErrValidation, fromRef)
	}
	return nil
}

// ValidateLinkAssignment validates an assign/unassign body
func ValidateLinkAssignment(req *topology.LinkAssignment) error {
	if req == nil {
		return fmt.Errorf("%w: assignment cannot be nil", topology.ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateEntityRef validates a node/device reference used in a move request
func ValidateEntityRef(ref topology.EntityRef) error {
	if !ref.Kind.Valid() {
		return fmt.Errorf("%w: Kind: unknown entity kind %q", topology.ErrValidation, ref.Kind)
	}
	if ref.ID <= 0 {
		return fmt.Errorf("%w: ID: must be at least 1", topology.ErrValidation)
	}
	return nil
}

// Struct validates any tagged struct with the shared validator
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func validateRouteName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: Name: field is required", topology.ErrValidation)
	}
	if len(name) > MaxRouteNameLength {
		return fmt.Errorf("%w: Name: must not exceed %d characters", topology.ErrValidation, MaxRouteNameLength)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %w", topology.ErrValidation, err)
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%w: %s: field is required", topology.ErrValidation, field)
		case "min", "gte":
			return fmt.Errorf("%w: %s: must be at least %s", topology.ErrValidation, field, param)
		case "max":
			return fmt.Errorf("%w: %s: must not exceed %s", topology.ErrValidation, field, param)
		case "oneof":
			return fmt.Errorf("%w: %s: %q must be one of [%s]", topology.ErrValidation, field, e.Value(), param)
		default:
			return fmt.Errorf("%w: %s: validation failed (%s)", topology.ErrValidation, field, e.Tag())
		}
	}

	return fmt.Errorf("%w: %w", topology.ErrValidation, err)
}
