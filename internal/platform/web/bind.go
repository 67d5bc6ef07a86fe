package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"

	perr "defectwatch/internal/platform/errors"
)

const maxBodyBytes = 1 << 20 // 1MB

// ValidatorSvc holds the singleton validator and translator
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc
)

// Validate returns the validator singleton, initializing on first use with
// english translations and json tag names
func Validate() *ValidatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = entrans.RegisterDefaultTranslations(v, trans)

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

// BindJSON decodes the request body into dst and validates it.
// Errors come back as coded project errors ready for RespondError
func BindJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return perr.JSONErrf("request body is empty")
		}
		return perr.Wrap(err, perr.ErrorCodeJSON, "decode request body")
	}

	svc := Validate()
	if err := svc.Validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return perr.WithField(
				perr.New(perr.ErrorCodeValidation, fe.Translate(svc.Translator)),
				fe.Field())
		}
		return perr.Wrap(err, perr.ErrorCodeValidation, "validate request body")
	}
	return nil
}
