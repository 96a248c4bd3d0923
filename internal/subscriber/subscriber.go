package subscriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CurrentVersion is the schema version every record is migrated to.
const CurrentVersion = 2

// idNamespace scopes ids derived from email addresses of v1 records.
var idNamespace = uuid.MustParse("6f1c3d1e-8a4b-4f7e-9c55-2f0d5b9a7e10")

// Subscriber is the migrated, in-memory form of a record.
type Subscriber struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Categories []string
	Validated  bool
}

// Repository lists subscribers eligible for delivery.
type Repository interface {
	Validated(ctx context.Context) ([]Subscriber, error)
}

// Record is the stored shape. Version 1 kept categories as a comma string
// under "category" and had no id; version 2 uses "categories" and "uuid".
type Record struct {
	SchemaVersion int      `json:"schema_version,omitempty"`
	UUID          string   `json:"uuid,omitempty"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Email         string   `json:"email"`
	Category      string   `json:"category,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Validated     FlexBool `json:"validated"`
}

// FlexBool accepts true, "true", and "1".
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*b = FlexBool(v)
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		*b = FlexBool(s == "true" || s == "1" || s == "yes")
	case float64:
		*b = FlexBool(v != 0)
	default:
		return fmt.Errorf("validated: unsupported value %s", string(data))
	}
	return nil
}

// Migrate upgrades r to CurrentVersion. changed reports whether the stored
// form differs and should be written back.
func Migrate(r Record) (Record, bool) {
	if r.SchemaVersion >= CurrentVersion && r.UUID != "" && r.Category == "" {
		return r, false
	}

	out := r
	if len(out.Categories) == 0 && r.Category != "" {
		out.Categories = splitCategories(r.Category)
	}
	out.Category = ""
	if out.UUID == "" {
		out.UUID = IDForEmail(r.Email)
	}
	out.SchemaVersion = CurrentVersion
	return out, true
}

// IDForEmail derives a stable id so a migration that fails to write back
// yields the same id on the next run.
func IDForEmail(email string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.ToLower(strings.TrimSpace(email)))).String()
}

func splitCategories(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// ToSubscriber converts a migrated record.
func (r Record) ToSubscriber() Subscriber {
	return Subscriber{
		ID:         r.UUID,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Email:      r.Email,
		Categories: append([]string(nil), r.Categories...),
		Validated:  bool(r.Validated),
	}
}
