package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultFilename is used when the client does not name the output.
const DefaultFilename = "export.docx"

// filenamePattern restricts output names to a safe character set and forces
// the .docx suffix, rejecting traversal attempts and double extensions.
var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9 _.-]+\.docx$`)

// ConvertRequest is the JSON body accepted by the convert endpoint.
type ConvertRequest struct {
	Content  string `json:"content" validate:"required"`
	Filename string `json:"filename" validate:"omitempty,docxname"`
}

// Validator checks request shape and content limits at the boundary, before
// any conversion work starts.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	// Registration only fails for empty tags or nil funcs; neither applies here.
	_ = v.RegisterValidation("docxname", func(fl validator.FieldLevel) bool {
		return filenamePattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// ValidateConvert normalizes req in place and returns a BadInput error when
// the request violates the schema or the configured size limit. The size is
// measured in encoded bytes, not code points.
func (v *Validator) ValidateConvert(req *ConvertRequest, maxBytes int) *Error {
	if err := v.validate.Struct(req); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			switch fe.Field() {
			case "Filename":
				return BadInput(fmt.Sprintf("invalid filename %q: must match %s", req.Filename, filenamePattern.String()))
			default:
				return BadInput("content is required")
			}
		}
		return BadInput("invalid request")
	}

	if err := CheckContent(req.Content, maxBytes); err != nil {
		return err
	}

	if req.Filename == "" {
		req.Filename = DefaultFilename
	}
	return nil
}

// CheckContent enforces the non-empty and byte-size invariants. It is shared
// with the orchestrator, which re-validates defensively.
func CheckContent(content string, maxBytes int) *Error {
	if strings.TrimSpace(content) == "" {
		return BadInput("empty content provided")
	}
	if size := len(content); size > maxBytes {
		return BadInput(fmt.Sprintf("content too large: %d bytes (max: %d bytes)", size, maxBytes))
	}
	return nil
}
