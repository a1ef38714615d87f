package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"
)

// File is one uploaded file part.
type File struct {
	Name   string
	Reader io.Reader
}

// Multipart is a form body with plain fields and file parts, used when an
// entity save carries an image.
type Multipart struct {
	Fields map[string]string
	Files  map[string]File
}

func (m *Multipart) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, m.Fields[k]); err != nil {
			return nil, "", err
		}
	}

	names := make([]string, 0, len(m.Files))
	for k := range m.Files {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, field := range names {
		f := m.Files[field]
		if f.Reader == nil {
			return nil, "", fmt.Errorf("multipart: file %q has no content", field)
		}
		part, err := w.CreateFormFile(field, filepath.Base(f.Name))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
