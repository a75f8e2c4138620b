// Package frontmatter extracts and rewrites YAML front matter on generated
// knowledge documents.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/timottowitz/covidvaccinedetox/internal/checksum"
)

const delim = "---"

// Doc holds a parsed knowledge document.
type Doc struct {
	Meta map[string]interface{}
	Body string
}

// Parse splits raw markdown into YAML front matter and body. Missing or
// malformed front matter yields an empty Meta and the full content as body.
func Parse(data []byte) *Doc {
	meta, body := split(data)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return &Doc{Meta: meta, Body: body}
}

// split separates the front-matter block (between leading --- delimiters)
// from the body. Invalid YAML falls back to treating everything as body.
func split(data []byte) (map[string]interface{}, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var meta map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &meta); err != nil {
		return nil, string(data)
	}
	return meta, body
}

// BodyHash returns the hex SHA-256 of the body only, so front-matter edits
// (such as a resource_id back-reference) never change the hash.
func BodyHash(data []byte) string {
	doc := Parse(data)
	return checksum.Sum([]byte(doc.Body))
}

// Title returns the front-matter title, or empty string.
func (d *Doc) Title() string {
	return d.stringField("title")
}

// ResourceID returns the front-matter resource_id, or empty string.
func (d *Doc) ResourceID() string {
	return d.stringField("resource_id")
}

// Source returns the front-matter source, or empty string.
func (d *Doc) Source() string {
	return d.stringField("source")
}

func (d *Doc) stringField(key string) string {
	if v, ok := d.Meta[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Tags returns the front-matter tags list.
func (d *Doc) Tags() []string {
	raw, ok := d.Meta["tags"]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Date returns the front-matter date. yaml.v3 resolves canonical timestamps
// to time.Time; plain "2006-01-02" strings are parsed as a fallback.
func (d *Doc) Date() (time.Time, bool) {
	raw, ok := d.Meta["date"]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// WithResourceID re-serializes data with resource_id set in the front
// matter. The body is carried over byte-for-byte so its hash is stable.
func WithResourceID(data []byte, id string) ([]byte, error) {
	doc := Parse(data)
	doc.Meta["resource_id"] = id

	block, err := yaml.Marshal(doc.Meta)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(block)
	buf.WriteString(delim + "\n\n")
	buf.WriteString(doc.Body)
	return buf.Bytes(), nil
}

// Compose builds a knowledge document from metadata and body.
func Compose(meta map[string]interface{}, body string) ([]byte, error) {
	block, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(block)
	buf.WriteString(delim + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}
