package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidTask is returned for API payloads that do not describe a task
var ErrInvalidTask = errors.New("invalid task data")

// DecodeError lists the fields of a payload that failed validation
type DecodeError struct {
	Source string
	Fields []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s: missing or invalid fields: %s", ErrInvalidTask, e.Source, strings.Join(e.Fields, ", "))
}

func (e *DecodeError) Unwrap() error { return ErrInvalidTask }

// Wire shapes use pointers so that an absent field can be told apart from a
// zero value. Only results are optional.
type wireFiles struct {
	PostState *string `json:"post-state" validate:"required"`
	OutLog    *string `json:"out-log" validate:"required"`
	ErrLog    *string `json:"err-log" validate:"required"`
}

type wireResult struct {
	Success       *bool      `json:"success" validate:"required"`
	Created       *string    `json:"created" validate:"required"`
	ClientName    *string    `json:"client-name" validate:"required"`
	ClientVersion *string    `json:"client-version" validate:"required"`
	PostHash      *string    `json:"post-hash" validate:"required"`
	Files         *wireFiles `json:"files" validate:"required"`
}

type wireTask struct {
	Blocks      *int                   `json:"blocks" validate:"required,gte=0"`
	SpecVersion *string                `json:"spec-version" validate:"required"`
	SpecConfig  *string                `json:"spec-config" validate:"required"`
	Created     *string                `json:"created" validate:"required"`
	Key         *string                `json:"key" validate:"required"`
	Results     map[string]*wireResult `json:"results" validate:"omitempty,dive,required"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// DecodeTask decodes and validates a single task payload
func DecodeTask(data []byte) (*Task, error) {
	var w wireTask
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	return w.toTask("task")
}

// DecodeTaskWithKey decodes a task payload that is addressed by key. The task
// endpoint does not echo the key back, so it is filled in before validation.
func DecodeTaskWithKey(data []byte, key string) (*Task, error) {
	var w wireTask
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	w.Key = &key
	return w.toTask("task")
}

// DecodeListing decodes and validates a listing: a JSON array of tasks
func DecodeListing(data []byte) ([]Task, error) {
	var ws []wireTask
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: listing: %v", ErrInvalidTask, err)
	}
	tasks := make([]Task, 0, len(ws))
	for i := range ws {
		t, err := ws[i].toTask(fmt.Sprintf("listing[%d]", i))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (w *wireTask) toTask(source string) (*Task, error) {
	if err := getValidator().Struct(w); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTask, source, err)
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			// strip the struct name prefix, keep the wire path
			ns := fe.Namespace()
			if i := strings.IndexByte(ns, '.'); i >= 0 {
				ns = ns[i+1:]
			}
			fields = append(fields, ns)
		}
		return nil, &DecodeError{Source: source, Fields: fields}
	}

	t := &Task{
		Key:         *w.Key,
		Blocks:      *w.Blocks,
		SpecVersion: *w.SpecVersion,
		SpecConfig:  *w.SpecConfig,
		Created:     *w.Created,
		Results:     make(map[string]Result, len(w.Results)),
	}
	for k, r := range w.Results {
		t.Results[k] = Result{
			Success:       *r.Success,
			Created:       *r.Created,
			ClientName:    *r.ClientName,
			ClientVersion: *r.ClientVersion,
			PostHash:      *r.PostHash,
			Files: ResultFiles{
				PostStateURL: *r.Files.PostState,
				OutLogURL:    *r.Files.OutLog,
				ErrLogURL:    *r.Files.ErrLog,
			},
		}
	}
	return t, nil
}
