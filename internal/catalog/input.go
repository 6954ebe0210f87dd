package catalog

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"coursetrack/internal/model"
)

// LectureInput is the scheduling form submitted by faculty.
type LectureInput struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Title     string `json:"title" validate:"required,max=200"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,len=5,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,len=5,datetime=15:04"`
	Room      string `json:"room" validate:"required,max=100"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate trims the input and checks required fields and formats.
func (in *LectureInput) Validate() error {
	in.SubjectID = strings.TrimSpace(in.SubjectID)
	in.Title = strings.TrimSpace(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	in.Room = strings.TrimSpace(in.Room)

	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &model.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), describe(fe))
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "datetime":
		if fe.Param() == model.DateLayout {
			return "must be YYYY-MM-DD"
		}
		return "must be HH:MM"
	case "len":
		return "must be HH:MM"
	case "max":
		return "too long"
	}
	return "invalid"
}
