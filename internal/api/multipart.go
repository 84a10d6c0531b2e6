package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/and161185/birdwatch/internal/model"
)

// form is a multipart body: plain fields, JSON fields and at most one file.
type form struct {
	fields    []formField
	fileField string
	file      *model.Upload
}

type formField struct {
	name  string
	value any // string, or a value sent as its JSON text
}

func newForm() *form { return &form{} }

func (f *form) field(name, value string) *form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// jsonField adds v as a text field holding its JSON encoding.
func (f *form) jsonField(name string, v any) *form {
	f.fields = append(f.fields, formField{name: name, value: v})
	return f
}

// attach adds u under name when u carries a body.
func (f *form) attach(name string, u *model.Upload) *form {
	if u != nil && u.Body != nil {
		f.fileField, f.file = name, u
	}
	return f
}

func (f *form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, fl := range f.fields {
		value, ok := fl.value.(string)
		if !ok {
			b, err := json.Marshal(fl.value)
			if err != nil {
				return nil, "", fmt.Errorf("encode %s: %w", fl.name, err)
			}
			value = string(b)
		}
		if err := w.WriteField(fl.name, value); err != nil {
			return nil, "", err
		}
	}
	if f.file != nil {
		name := f.file.Filename
		if name == "" {
			name = "upload"
		}
		fw, err := w.CreateFormFile(f.fileField, name)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(fw, f.file.Body); err != nil {
			return nil, "", fmt.Errorf("read %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
