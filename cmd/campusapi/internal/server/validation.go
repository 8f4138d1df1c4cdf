package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pensezy/edutrack/pkg/sdk"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("edutrack_role", func(fl validator.FieldLevel) bool {
		return sdk.Role(fl.Field().String()).Valid()
	})
	return v
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Secret     string `json:"secret" validate:"required,max=128"`
}

type upsertUserRequest struct {
	ID       string `json:"id" validate:"required,max=64"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	FullName string `json:"full_name" validate:"max=200"`
	Role     string `json:"role" validate:"required,edutrack_role"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Active   bool   `json:"is_active"`
}

func (r upsertUserRequest) record() sdk.UserRecord {
	return sdk.UserRecord{
		ID:       r.ID,
		Email:    r.Email,
		FullName: r.FullName,
		Role:     sdk.Role(r.Role),
		Phone:    r.Phone,
		Active:   r.Active,
	}
}

type principalNameRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return validationMessage(verrs)
		}
		return err
	}
	return nil
}

func validationMessage(verrs validator.ValidationErrors) error {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "email":
			parts = append(parts, fe.Field()+" must be a valid email address")
		case "edutrack_role":
			parts = append(parts, fe.Field()+" must be one of parent, student, teacher, secretary, principal, admin")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return errors.New(strings.Join(parts, "; "))
}
