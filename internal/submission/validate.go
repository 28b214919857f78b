package submission

import (
	"errors"
	"fmt"
	"strings"

	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"
	"go-omegaloops/internal/uploader"
)

// ErrValidation is matched by every input error caught before any I/O.
var ErrValidation = errors.New("validation failed")

// ValidationError reports one invalid field. Field "file" carries the
// uploader's rejection in Err.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

var (
	minPrice, _ = helpers.ParseEth(models.MinPriceEth)
	maxPrice, _ = helpers.ParseEth(models.MaxPriceEth)
)

// ValidateForm checks the form fields and returns every problem found,
// joined. A nil result means the form can be submitted.
func ValidateForm(sub models.Submission) error {
	var errs []error
	required := []struct{ field, value string }{
		{"artist", sub.Artist},
		{"title", sub.Title},
		{"category", sub.Category},
		{"description", sub.Description},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, &ValidationError{Field: r.field, Reason: "is required"})
		}
	}

	if sub.Category != "" && !models.IsKnownCategory(sub.Category) {
		errs = append(errs, &ValidationError{Field: "category", Reason: fmt.Sprintf("%q is not a known category", sub.Category)})
	}

	if sub.NumberOfCopies < models.MinCopies || sub.NumberOfCopies > models.MaxCopies {
		errs = append(errs, &ValidationError{
			Field:  "numberOfCopies",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", models.MinCopies, models.MaxCopies, sub.NumberOfCopies),
		})
	}

	price, err := helpers.ParseEth(sub.PriceEth)
	switch {
	case err != nil:
		errs = append(errs, &ValidationError{Field: "price", Reason: "is not a valid ETH amount", Err: err})
	case price.Cmp(minPrice) < 0 || price.Cmp(maxPrice) > 0:
		errs = append(errs, &ValidationError{
			Field:  "price",
			Reason: fmt.Sprintf("must be between %s and %s ETH", models.MinPriceEth, models.MaxPriceEth),
		})
	}

	return errors.Join(errs...)
}

// Validate checks the form and the file together.
func Validate(sub models.Submission, asset models.MediaAsset) error {
	formErr := ValidateForm(sub)
	var fileErr error
	if err := uploader.Validate(asset); err != nil {
		fileErr = &ValidationError{Field: "file", Reason: err.Error(), Err: err}
	}
	return errors.Join(formErr, fileErr)
}
