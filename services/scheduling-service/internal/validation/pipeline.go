package validation

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

type Mode int

const (
	ModeCreate Mode = iota
	ModeReschedule
)

// Request is the input every validator inspects. Current is set only when
// rescheduling.
type Request struct {
	Mode      Mode
	Candidate model.Appointment
	Current   *model.Appointment
	Caller    model.Caller
	Service   model.Service
	Now       time.Time
}

type Validator interface {
	Name() string
	Validate(ctx context.Context, req *Request) error
}

// Pipeline runs validators in order and stops at the first failure. It holds
// no per-request state and is safe for concurrent use.
type Pipeline struct {
	validators []Validator
}

func NewPipeline(validators ...Validator) *Pipeline {
	return &Pipeline{validators: validators}
}

func (p *Pipeline) Run(ctx context.Context, req *Request) error {
	for _, v := range p.validators {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.Validate(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.validators))
	for _, v := range p.validators {
		names = append(names, v.Name())
	}
	return names
}
