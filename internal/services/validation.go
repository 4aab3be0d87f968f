package services

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Lllllllleong/bonafideflow/internal/audit"
	"github.com/Lllllllleong/bonafideflow/internal/models"
)

const maxPDFSize = 10 << 20

var (
	rollNumberRegex = regexp.MustCompile(`^[A-Za-z0-9]{4,20}$`)
	mobileStripper  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	mobileRegex     = regexp.MustCompile(`^[0-9]{10}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobileRegex.MatchString(normalizeMobile(fl.Field().String()))
	})
	_ = v.RegisterValidation("roll_number", func(fl validator.FieldLevel) bool {
		return rollNumberRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pdf_filename", func(fl validator.FieldLevel) bool {
		return strings.HasSuffix(strings.ToLower(fl.Field().String()), ".pdf")
	})
	_ = v.RegisterValidation("max_pdf_size", func(fl validator.FieldLevel) bool {
		n := fl.Field().Len()
		return n > 0 && n <= maxPDFSize
	})
	return v
}

func normalizeMobile(s string) string {
	return mobileStripper.Replace(strings.TrimSpace(s))
}

// validationError flattens validator errors into one ErrInvalidInput.
func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	fields := make([]string, 0, len(ves))
	for _, ve := range ves {
		fields = append(fields, fmt.Sprintf("%s (%s)", ve.Namespace(), ve.Tag()))
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: invalid fields: %s", ErrInvalidInput, strings.Join(fields, ", "))
}

// requiredAttachments lists the files each request kind must carry.
var requiredAttachments = map[audit.SchemaVariant][]string{
	audit.SchemaBonafide:   {models.AttachmentPermissionLetter},
	audit.SchemaInternship: {models.AttachmentPermissionLetter, models.AttachmentOfferLetter, models.AttachmentParentConsent},
}

// validateSubmission checks a submission and returns the parsed internship
// details, which are nil for bonafide requests.
func validateSubmission(req *models.SubmitRequest) (*models.InternshipDetails, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	kind, err := audit.ParseSchemaVariant(req.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	seen := make(map[string]bool, len(req.Files))
	for _, f := range req.Files {
		if seen[f.Kind] {
			return nil, fmt.Errorf("%w: duplicate %s", ErrInvalidInput, f.Kind)
		}
		seen[f.Kind] = true
	}
	for _, k := range requiredAttachments[kind] {
		if !seen[k] {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidInput, k)
		}
	}

	if kind != audit.SchemaInternship {
		return nil, nil
	}
	if req.InternshipType == "" || req.StartDate == "" || req.EndDate == "" {
		return nil, fmt.Errorf("%w: internship type, start date and end date are required", ErrInvalidInput)
	}
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrInvalidInput)
	}
	return &models.InternshipDetails{
		CompanyName:    strings.TrimSpace(req.CompanyName),
		InternshipType: req.InternshipType,
		StartDate:      start,
		EndDate:        end,
		ParentName:     strings.TrimSpace(req.ParentName),
		ParentMobile:   normalizeMobile(req.ParentMobile),
	}, nil
}

func validateRollNumber(roll string) error {
	if err := validate.Var(roll, "roll_number"); err != nil {
		return fmt.Errorf("%w: roll number on profile must be 4-20 letters or digits", ErrInvalidInput)
	}
	return nil
}
