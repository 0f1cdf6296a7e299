package httpserver

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators teaches gin's validator the JSON-text rules and makes
// field errors report JSON names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("jsonarray", jsonShape('['))
		_ = v.RegisterValidation("jsonobject", jsonShape('{'))
	})
}

// jsonShape accepts empty text or valid JSON whose first token opens with open.
func jsonShape(open byte) validator.Func {
	return func(fl validator.FieldLevel) bool {
		text := strings.TrimSpace(fl.Field().String())
		if text == "" {
			return true
		}
		return text[0] == open && json.Valid([]byte(text))
	}
}

// jsonText holds JSON stored as text. Clients may send either the encoded
// string or the raw JSON value.
type jsonText string

func (t *jsonText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = jsonText(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*t = jsonText(buf.String())
	}
	return nil
}

func (t *jsonText) ptr() *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

// featureList accepts a JSON array of tags or a single comma-separated string.
type featureList []string

func (f *featureList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw []string
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.Split(s, ",")
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(featureList, 0, len(raw))
	for _, tag := range raw {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	*f = out
	return nil
}

func (f featureList) String() string {
	return strings.Join(f, ",")
}
